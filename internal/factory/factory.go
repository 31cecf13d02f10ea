package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/capitalduel/internal/api/apierr"
	"github.com/mcoot/capitalduel/internal/config"
	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/dependencies/random"
	"github.com/mcoot/capitalduel/internal/events"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/match"
	"github.com/mcoot/capitalduel/internal/services/questions"
	"github.com/mcoot/capitalduel/internal/services/session"
	"github.com/mcoot/capitalduel/internal/storage"
	"github.com/mcoot/capitalduel/internal/storage/memory"
	"github.com/mcoot/capitalduel/internal/storage/postgres"
	redisstorage "github.com/mcoot/capitalduel/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	Random    random.Random
	Publisher events.Publisher

	// Services
	AuthService      *auth.Service
	QuestionsService *questions.Service
	Coordinator      *session.Coordinator

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// QuestionsPath is the path to the default question bank (optional)
	// If empty, defaults must be loaded manually
	QuestionsPath string
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// SessionConfig holds presence and match settings (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds Postgres connection settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// NATSConfig enables publishing match outcomes to NATS (optional)
	// If nil, outcomes are logged
	NATSConfig *events.NATSConfig
}

// ConfigFrom translates the server configuration into a factory Config
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		QuestionsPath: cfg.Questions.DefaultsPath,
		AuthConfig:    auth.Config{SessionDuration: cfg.Auth.SessionDuration},
		SessionConfig: session.Config{
			GracePeriod:     cfg.Match.GracePeriod,
			DefaultSettings: cfg.MatchDefaults(),
			Match: match.Config{
				TickPeriod:    cfg.Match.TickPeriod,
				VerifyAnswers: cfg.Match.VerifyAnswers,
			},
		},
		Logger:      logger,
		StorageType: cfg.Storage.Type,
	}

	switch cfg.Storage.Type {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		out.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pg := cfg.Storage.Postgres
		out.PostgresConfig = &postgres.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
			SSLMode:  pg.SSLMode,
			MaxConns: pg.MaxConns,
		}
	}

	if cfg.Events.NATSURL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.Events.NATSURL
		natsCfg.SubjectPrefix = cfg.Events.SubjectPrefix
		out.NATSConfig = &natsCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgres.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		store = pgStore
		closers = append(closers, pgStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.NATSConfig != nil {
		natsPublisher, err := events.NewNATSPublisher(*cfg.NATSConfig, clk, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = natsPublisher
	}
	closers = append(closers, publisher)

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	sessionCfg := cfg.SessionConfig
	if sessionCfg == (session.Config{}) {
		sessionCfg = session.DefaultConfig()
	}

	app := newWithDependencies(store, clk, rnd, publisher, authCfg, sessionCfg, logger)
	app.closers = closers

	if cfg.QuestionsPath != "" {
		if err := app.QuestionsService.LoadDefaultsFromFile(cfg.QuestionsPath); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	publisher events.Publisher,
	authCfg auth.Config,
	sessionCfg session.Config,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, authCfg, logger)
	questionsService := questions.New(store, logger)
	errorEvent := func(err error) model.Event {
		return apierr.Event(err, clk.Now())
	}
	coordinator := session.New(clk, rnd, questionsService, authService, publisher, errorEvent, sessionCfg, logger)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		Publisher:        publisher,
		AuthService:      authService,
		QuestionsService: questionsService,
		Coordinator:      coordinator,
	}
}

// Close stops every room and releases external connections
func (a *App) Close() {
	a.Coordinator.Shutdown()
	closeAll(a.closers, slog.Default())
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("failed to close dependency", slog.Any("error", err))
		}
	}
}
