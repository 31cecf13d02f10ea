package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(user.Username), data, 0)
	pipe.ZAdd(ctx, usernameIndexKey(), redis.Z{Score: 0, Member: string(user.Username)})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetUser(ctx context.Context, username model.Username) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, username model.Username) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, userKey(username))
	pipe.ZRem(ctx, usernameIndexKey(), string(username))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) SearchUsers(ctx context.Context, prefix string, limit int) ([]*model.User, error) {
	opt := &redis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		opt.Min = "[" + prefix
		opt.Max = "[" + prefix + "\xff"
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	names, err := s.client.ZRangeByLex(ctx, usernameIndexKey(), opt).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []*model.User{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = userKey(model.Username(name))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry without a record; skip it
			continue
		}
		var user model.User
		if err := json.Unmarshal([]byte(str), &user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	return users, nil
}

// Question bank operations

func (s *Storage) GetQuestions(ctx context.Context, username model.Username) ([]model.Question, error) {
	data, err := s.client.Get(ctx, questionsKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.Question{}, nil
		}
		return nil, err
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *Storage) SaveQuestions(ctx context.Context, username model.Username, questions []model.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, questionsKey(username), data, 0).Err()
}

func (s *Storage) DeleteQuestions(ctx context.Context, username model.Username) error {
	return s.client.Del(ctx, questionsKey(username)).Err()
}
