package presence

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
)

// DefaultGracePeriod is how long an identity may have no connections before it expires
const DefaultGracePeriod = 30 * time.Second

// Conn is a live connection bound to a single identity
type Conn interface {
	ID() string
	// Send queues an event for delivery. It must not block and reports
	// whether the event was accepted.
	Send(ev model.Event) bool
}

// State is the presence lifecycle of an identity
type State string

const (
	StateAbsent         State = "absent"
	StatePresent        State = "present"
	StatePendingAbsence State = "pending_absence"
)

// ExpiredFunc is called once per uninterrupted absence that outlives the grace period
type ExpiredFunc func(identity model.Username)

// Stats summarises the registry
type Stats struct {
	Present        int
	PendingAbsence int
	Connections    int
}

type entry struct {
	mu       sync.Mutex
	conns    map[string]Conn
	timer    clockwork.Timer
	deadline time.Time
	gen      uint64
	removed  bool
}

// Registry tracks the live connections of every identity.
// Mutations are serialized per identity; the registry lock only guards the map.
type Registry struct {
	clock  clock.Clock
	grace  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[model.Username]*entry

	handlerMu sync.RWMutex
	onExpired ExpiredFunc
}

// New creates a Registry with the given grace period
func New(clk clock.Clock, grace time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{
		clock:   clk,
		grace:   grace,
		logger:  logger,
		entries: make(map[model.Username]*entry),
	}
}

// OnExpired installs the identity-expired handler
func (r *Registry) OnExpired(fn ExpiredFunc) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onExpired = fn
}

// GracePeriod returns the configured grace period
func (r *Registry) GracePeriod() time.Duration {
	return r.grace
}

// Register adds a connection for identity and cancels any pending expiry
func (r *Registry) Register(identity model.Username, conn Conn) {
	for {
		e := r.getOrCreate(identity)

		e.mu.Lock()
		if e.removed {
			// Lost a race with expiry; the next lookup creates a fresh entry
			e.mu.Unlock()
			continue
		}
		e.conns[conn.ID()] = conn
		cancelled := e.cancelTimer()
		count := len(e.conns)
		e.mu.Unlock()

		r.logger.Debug("connection registered",
			slog.String("username", string(identity)),
			slog.String("connection_id", conn.ID()),
			slog.Int("connections", count),
			slog.Bool("absence_cancelled", cancelled),
		)
		return
	}
}

// Deregister removes a connection. If it was the identity's last connection
// the grace timer starts and Deregister returns true.
func (r *Registry) Deregister(identity model.Username, conn Conn) bool {
	e := r.get(identity)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return false
	}
	if _, ok := e.conns[conn.ID()]; !ok {
		return false
	}
	delete(e.conns, conn.ID())
	if len(e.conns) > 0 {
		return false
	}

	e.gen++
	gen := e.gen
	e.deadline = r.clock.Now().Add(r.grace)
	e.timer = r.clock.AfterFunc(r.grace, func() {
		r.onGraceExpired(identity, e, gen)
	})

	r.logger.Info("identity absent",
		slog.String("username", string(identity)),
		slog.Time("deadline", e.deadline),
	)
	return true
}

func (r *Registry) onGraceExpired(identity model.Username, e *entry, gen uint64) {
	e.mu.Lock()
	if e.removed || e.timer == nil || e.gen != gen || len(e.conns) > 0 {
		e.mu.Unlock()
		return
	}
	e.removed = true
	e.timer = nil
	e.mu.Unlock()

	r.mu.Lock()
	if r.entries[identity] == e {
		delete(r.entries, identity)
	}
	r.mu.Unlock()

	r.logger.Info("identity expired", slog.String("username", string(identity)))

	r.handlerMu.RLock()
	fn := r.onExpired
	r.handlerMu.RUnlock()
	if fn != nil {
		fn(identity)
	}
}

// IsPresent reports whether identity has at least one live connection
func (r *Registry) IsPresent(identity model.Username) bool {
	state, _ := r.State(identity)
	return state == StatePresent
}

// State returns the lifecycle state of identity, and the expiry deadline when pending
func (r *Registry) State(identity model.Username) (State, time.Time) {
	e := r.get(identity)
	if e == nil {
		return StateAbsent, time.Time{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.removed:
		return StateAbsent, time.Time{}
	case len(e.conns) > 0:
		return StatePresent, time.Time{}
	default:
		return StatePendingAbsence, e.deadline
	}
}

// Connections returns the live connections of identity
func (r *Registry) Connections(identity model.Username) []Conn {
	e := r.get(identity)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	conns := make([]Conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

// Send delivers ev to every live connection of identity and returns how many accepted it
func (r *Registry) Send(identity model.Username, ev model.Event) int {
	delivered := 0
	for _, c := range r.Connections(identity) {
		if c.Send(ev) {
			delivered++
		}
	}
	return delivered
}

// Stats returns a summary of the registry
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var stats Stats
	for _, e := range entries {
		e.mu.Lock()
		switch {
		case e.removed:
		case len(e.conns) > 0:
			stats.Present++
			stats.Connections += len(e.conns)
		default:
			stats.PendingAbsence++
		}
		e.mu.Unlock()
	}
	return stats
}

// Close cancels every pending expiry. Used on shutdown so no purge runs afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.mu.Lock()
		e.cancelTimer()
		e.mu.Unlock()
	}
}

func (r *Registry) get(identity model.Username) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[identity]
}

func (r *Registry) getOrCreate(identity model.Username) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok {
		e = &entry{conns: make(map[string]Conn)}
		r.entries[identity] = e
	}
	return e
}

// cancelTimer stops a pending expiry. The caller must hold e.mu.
func (e *entry) cancelTimer() bool {
	if e.timer == nil {
		return false
	}
	e.timer.Stop()
	e.timer = nil
	e.deadline = time.Time{}
	return true
}
