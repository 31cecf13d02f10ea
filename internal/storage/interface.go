package storage

import (
	"context"

	"github.com/mcoot/capitalduel/internal/model"
)

// MaxSearchResults caps the number of users returned by a search
const MaxSearchResults = 5

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username model.Username) (*model.User, error)
	DeleteUser(ctx context.Context, username model.Username) error
	// SearchUsers returns up to limit users whose username starts with prefix, in username order
	SearchUsers(ctx context.Context, prefix string, limit int) ([]*model.User, error)

	// Question bank operations. A user without a bank has no questions.
	GetQuestions(ctx context.Context, username model.Username) ([]model.Question, error)
	SaveQuestions(ctx context.Context, username model.Username, questions []model.Question) error
	DeleteQuestions(ctx context.Context, username model.Username) error
}
