package match

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/dependencies/random"
	"github.com/mcoot/capitalduel/internal/model"
)

// Config controls how rooms run
type Config struct {
	TickPeriod    time.Duration
	VerifyAnswers bool
}

// DefaultConfig returns the production room settings
func DefaultConfig() Config {
	return Config{TickPeriod: DefaultTickPeriod}
}

// ResultFunc receives the outcome of every match. It runs on the room's
// worker after the final broadcast.
type ResultFunc func(result model.MatchResult)

// Manager is the table of live rooms. It routes by id and never touches match state.
type Manager struct {
	engine   *Engine
	notifier Notifier
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger

	mu    sync.RWMutex
	rooms map[model.RoomID]*Room

	resultMu sync.RWMutex
	onResult ResultFunc
}

// NewManager creates a room Manager
func NewManager(clk clock.Clock, rnd random.Random, notifier Notifier, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	return &Manager{
		engine:   NewEngine(clk, rnd, cfg.VerifyAnswers),
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		rooms:    make(map[model.RoomID]*Room),
	}
}

// OnResult installs the handler for finished matches
func (m *Manager) OnResult(fn ResultFunc) {
	m.resultMu.Lock()
	defer m.resultMu.Unlock()
	m.onResult = fn
}

// Engine returns the engine shared by all rooms
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Create starts a room for the pair. The initiator takes the first turn.
func (m *Manager) Create(players model.Players, settings model.MatchSettings, questions []model.Question) (*Room, model.MatchSnapshot, error) {
	match, err := m.engine.NewMatch(players, settings, questions)
	if err != nil {
		return nil, model.MatchSnapshot{}, err
	}

	m.mu.Lock()
	if _, exists := m.rooms[match.ID]; exists {
		m.mu.Unlock()
		return nil, model.MatchSnapshot{}, model.ErrMatchInProgress
	}
	room := newRoom(match, m.engine, m.notifier, m.clock, m.cfg.TickPeriod, m.logger, m.finished)
	m.rooms[match.ID] = room
	m.mu.Unlock()

	// Taken before the worker starts, so it matches the first broadcast
	snapshot := match.Snapshot()

	m.logger.Info("match started",
		slog.String("room_id", string(match.ID)),
		slog.String("initiator", string(players.Initiator)),
		slog.String("responder", string(players.Responder)),
		slog.Int("duration", settings.Duration),
		slog.Int("skip_penalty", settings.SkipPenalty),
		slog.Int("prompt_pool", len(match.PromptPool)),
	)

	go room.run()
	return room, snapshot, nil
}

// Get returns the live room with the given id
func (m *Manager) Get(id model.RoomID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

// RoomsFor returns every live room the user plays in
func (m *Manager) RoomsFor(u model.Username) []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rooms []*Room
	for _, room := range m.rooms {
		if room.players.Has(u) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// Count returns the number of live rooms
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Shutdown stops every room without producing outcomes
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for id, room := range m.rooms {
		rooms = append(rooms, room)
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
}

// finished runs on the room's worker once its match is over
func (m *Manager) finished(room *Room, result model.MatchResult) {
	m.mu.Lock()
	if m.rooms[room.id] == room {
		delete(m.rooms, room.id)
	}
	m.mu.Unlock()

	m.resultMu.RLock()
	fn := m.onResult
	m.resultMu.RUnlock()
	if fn != nil {
		fn(result)
	}
}
