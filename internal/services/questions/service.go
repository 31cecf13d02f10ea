package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/storage"
)

// Service manages each user's question bank and the shared default bank
type Service struct {
	storage storage.Storage
	logger  *slog.Logger

	mu       sync.RWMutex
	defaults []model.Question
}

// New creates a new question Service
func New(storage storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// LoadDefaultsFromFile loads the default bank from a JSON array of
// {"country", "capital"} objects
func (s *Service) LoadDefaultsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var qs []model.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if err := s.SetDefaults(qs); err != nil {
		return err
	}

	s.logger.Info("default questions loaded",
		slog.String("path", path),
		slog.Int("count", len(qs)),
	)
	return nil
}

// SetDefaults replaces the default bank (useful for testing)
func (s *Service) SetDefaults(qs []model.Question) error {
	normalized, err := normalize(qs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = normalized
	return nil
}

// Defaults returns a copy of the default bank
func (s *Service) Defaults() []model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Question(nil), s.defaults...)
}

// Fetch returns the user's questions
func (s *Service) Fetch(ctx context.Context, username model.Username) ([]model.Question, error) {
	return s.storage.GetQuestions(ctx, username)
}

// Replace validates and stores a new bank for the user
func (s *Service) Replace(ctx context.Context, username model.Username, qs []model.Question) ([]model.Question, error) {
	normalized, err := normalize(qs)
	if err != nil {
		return nil, err
	}

	if err := s.storage.SaveQuestions(ctx, username, normalized); err != nil {
		return nil, err
	}

	s.logger.Info("questions saved",
		slog.String("username", string(username)),
		slog.Int("count", len(normalized)),
	)
	return normalized, nil
}

// UseDefaults copies the default bank into the user's bank
func (s *Service) UseDefaults(ctx context.Context, username model.Username) ([]model.Question, error) {
	defaults := s.Defaults()
	if len(defaults) == 0 {
		return nil, model.ErrDefaultsNotLoaded
	}
	return s.Replace(ctx, username, defaults)
}

// Forget deletes the user's bank
func (s *Service) Forget(ctx context.Context, username model.Username) error {
	return s.storage.DeleteQuestions(ctx, username)
}

func normalize(qs []model.Question) ([]model.Question, error) {
	if len(qs) > model.MaxQuestions {
		return nil, fmt.Errorf("%w: at most %d allowed", model.ErrTooManyQuestions, model.MaxQuestions)
	}

	out := make([]model.Question, len(qs))
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		out[i] = q.Normalize()
	}
	return out, nil
}
