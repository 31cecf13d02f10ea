package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users     map[model.Username]*model.User
	questions map[model.Username][]model.Question
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:     make(map[model.Username]*model.User),
		questions: make(map[model.Username][]model.Question),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.Username] = &u
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Storage) DeleteUser(ctx context.Context, username model.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
	return nil
}

func (s *Storage) SearchUsers(ctx context.Context, prefix string, limit int) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		if strings.HasPrefix(string(name), prefix) {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	result := make([]*model.User, 0, len(names))
	for _, name := range names {
		u := *s.users[model.Username(name)]
		result = append(result, &u)
	}
	return result, nil
}

// Question bank operations

func (s *Storage) GetQuestions(ctx context.Context, username model.Username) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Question(nil), s.questions[username]...), nil
}

func (s *Storage) SaveQuestions(ctx context.Context, username model.Username, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[username] = append([]model.Question(nil), questions...)
	return nil
}

func (s *Storage) DeleteQuestions(ctx context.Context, username model.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, username)
	return nil
}
