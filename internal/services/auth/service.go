package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrPasswordTooShort   = errors.New("password is too short")
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// Service issues sessions for usernames and manages their lifetime
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*model.Session

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new AuthService
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		logger:          logger,
		sessions:        make(map[string]*model.Session),
		sessionDuration: cfg.SessionDuration,
	}
}

// Login creates the user on first use and returns a new session.
// Accounts that have set a password must supply it.
func (s *Service) Login(ctx context.Context, username model.Username, password string) (*model.Session, error) {
	if !username.Valid() {
		return nil, model.ErrInvalidUsername
	}

	user, err := s.storage.GetUser(ctx, username)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		now := s.clock.Now()
		user = &model.User{
			Username:  username,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.storage.SaveUser(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info("user created", slog.String("username", string(username)))
	case err != nil:
		return nil, err
	case user.HasPassword():
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	return s.createSession(username), nil
}

// SetPassword protects an account with a password
func (s *Service) SetPassword(ctx context.Context, username model.Username, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hash)
	user.UpdatedAt = s.clock.Now()
	return s.storage.SaveUser(ctx, user)
}

// GetUser returns a user by username
func (s *Service) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	return s.storage.GetUser(ctx, username)
}

// SearchUsers returns up to storage.MaxSearchResults users whose username starts with prefix
func (s *Service) SearchUsers(ctx context.Context, prefix string) ([]*model.User, error) {
	return s.storage.SearchUsers(ctx, prefix, storage.MaxSearchResults)
}

// Forget deletes the user record and every session bound to it
func (s *Service) Forget(ctx context.Context, username model.Username) error {
	s.mu.Lock()
	for token, session := range s.sessions {
		if session.Username == username {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()

	return s.storage.DeleteUser(ctx, username)
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*model.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// createSession creates a new session for a user
func (s *Service) createSession(username model.Username) *model.Session {
	now := s.clock.Now()

	session := &model.Session{
		Token:     s.generateID("sess_"),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	return session
}

// generateID generates a random ID with a prefix
func (s *Service) generateID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
