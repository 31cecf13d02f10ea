package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/capitalduel/internal/model"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the server configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Match     MatchConfig     `yaml:"match"`
	Auth      AuthConfig      `yaml:"auth"`
	Events    EventsConfig    `yaml:"events"`
	Questions QuestionsConfig `yaml:"questions"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type StorageConfig struct {
	Type     string         `yaml:"type"`
	RedisURL string         `yaml:"redis_url"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type MatchConfig struct {
	TickPeriod         time.Duration `yaml:"tick_period"`
	DefaultDuration    int           `yaml:"default_duration"`
	DefaultSkipPenalty int           `yaml:"default_skip_penalty"`
	GracePeriod        time.Duration `yaml:"grace_period"`
	VerifyAnswers      bool          `yaml:"verify_answers"`
}

type AuthConfig struct {
	SessionDuration time.Duration `yaml:"session_duration"`
}

// EventsConfig selects where match outcomes go. An empty NATS URL logs them instead.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type QuestionsConfig struct {
	DefaultsPath string `yaml:"defaults_path"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			Type:     StorageMemory,
			RedisURL: "redis://localhost:6379",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "postgres",
				Database: "capitalduel",
				SSLMode:  "disable",
			},
		},
		Match: MatchConfig{
			TickPeriod:         time.Second,
			DefaultDuration:    model.DefaultDuration,
			DefaultSkipPenalty: model.DefaultSkipPenalty,
			GracePeriod:        30 * time.Second,
		},
		Auth: AuthConfig{
			SessionDuration: 24 * time.Hour,
		},
		Events: EventsConfig{
			SubjectPrefix: "capitalduel",
		},
		Questions: QuestionsConfig{
			DefaultsPath: "data/questions.json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path if given, then environment variables
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	env := envReader{lookup: lookup}
	env.str("LOG_LEVEL", &cfg.LogLevel)

	env.str("SERVER_HOST", &cfg.Server.Host)
	env.integer("PORT", &cfg.Server.Port)
	env.list("CORS_ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	env.str("STORAGE_TYPE", &cfg.Storage.Type)
	env.str("REDIS_URL", &cfg.Storage.RedisURL)
	env.str("DB_HOST", &cfg.Storage.Postgres.Host)
	env.integer("DB_PORT", &cfg.Storage.Postgres.Port)
	env.str("DB_USER", &cfg.Storage.Postgres.User)
	env.str("DB_PASSWORD", &cfg.Storage.Postgres.Password)
	env.str("DB_NAME", &cfg.Storage.Postgres.Database)
	env.str("DB_SSLMODE", &cfg.Storage.Postgres.SSLMode)

	env.duration("MATCH_TICK_PERIOD", &cfg.Match.TickPeriod)
	env.integer("MATCH_DEFAULT_DURATION", &cfg.Match.DefaultDuration)
	env.integer("MATCH_DEFAULT_SKIP_PENALTY", &cfg.Match.DefaultSkipPenalty)
	env.duration("PRESENCE_GRACE_PERIOD", &cfg.Match.GracePeriod)
	env.boolean("MATCH_VERIFY_ANSWERS", &cfg.Match.VerifyAnswers)

	env.duration("SESSION_DURATION", &cfg.Auth.SessionDuration)

	env.str("NATS_URL", &cfg.Events.NATSURL)
	env.str("NATS_SUBJECT_PREFIX", &cfg.Events.SubjectPrefix)

	env.str("QUESTIONS_PATH", &cfg.Questions.DefaultsPath)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StoragePostgres:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage.redis_url is required for redis storage")
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, redis or postgres", c.Storage.Type)
	}

	if c.Match.TickPeriod <= 0 {
		return errors.New("match.tick_period must be positive")
	}
	if c.Match.GracePeriod <= 0 {
		return errors.New("match.grace_period must be positive")
	}
	if err := c.MatchDefaults().Validate(); err != nil {
		return fmt.Errorf("match defaults: %w", err)
	}
	return nil
}

// MatchDefaults returns the settings applied to invitations that omit them
func (c Config) MatchDefaults() model.MatchSettings {
	return model.MatchSettings{
		Duration:    c.Match.DefaultDuration,
		SkipPenalty: c.Match.DefaultSkipPenalty,
	}
}

// SlogLevel converts LogLevel, defaulting to info
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*dst = items
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
