package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/storage"
)

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and applies the schema
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Storage{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases all pooled connections
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`, string(user.Username), user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Storage) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	var user model.User
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT username, password_hash, created_at, updated_at FROM users WHERE username = $1
	`, string(username)).Scan(&name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	user.Username = model.Username(name)
	return &user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, username model.Username) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, string(username))
	return err
}

func (s *Storage) SearchUsers(ctx context.Context, prefix string, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = storage.MaxSearchResults
	}
	rows, err := s.pool.Query(ctx, `
		SELECT username, password_hash, created_at, updated_at FROM users
		WHERE starts_with(username, $1)
		ORDER BY username COLLATE "C"
		LIMIT $2
	`, prefix, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.User, error) {
		var user model.User
		var name string
		if err := row.Scan(&name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Username = model.Username(name)
		return &user, nil
	})
}

// Question bank operations

func (s *Storage) GetQuestions(ctx context.Context, username model.Username) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT country, capital FROM questions WHERE username = $1 ORDER BY position
	`, string(username))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Question, error) {
		var q model.Question
		err := row.Scan(&q.Country, &q.Capital)
		return q, err
	})
}

// SaveQuestions replaces the whole bank in one transaction
func (s *Storage) SaveQuestions(ctx context.Context, username model.Username, questions []model.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE username = $1`, string(username)); err != nil {
		return err
	}

	rows := make([][]any, len(questions))
	for i, q := range questions {
		rows[i] = []any{string(username), i, q.Country, q.Capital}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"username", "position", "country", "capital"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Storage) DeleteQuestions(ctx context.Context, username model.Username) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE username = $1`, string(username))
	return err
}
