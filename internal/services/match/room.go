package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
)

// DefaultTickPeriod is the interval at which the turn holder's clock runs down
const DefaultTickPeriod = time.Second

const inboxSize = 64

// Notifier delivers room events to a participant's connections
type Notifier interface {
	Notify(to model.Username, ev model.Event)
}

type commandKind int

const (
	cmdAdvance commandKind = iota
	cmdSkip
	cmdLeave
	cmdForfeit
	cmdSnapshot
	cmdSync
)

type command struct {
	kind   commandKind
	by     model.Username
	answer string

	snapshot chan model.MatchSnapshot
	send     func(model.Event) bool
	handled  chan struct{}
}

// Room runs a single match. One worker goroutine owns the match state and
// applies commands and clock ticks strictly in arrival order.
type Room struct {
	id      model.RoomID
	players model.Players

	match      *model.Match
	engine     *Engine
	notifier   Notifier
	clock      clock.Clock
	tickPeriod time.Duration
	logger     *slog.Logger
	onOver     func(*Room, model.MatchResult)

	inbox    chan command
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newRoom(m *model.Match, engine *Engine, notifier Notifier, clk clock.Clock, tickPeriod time.Duration, logger *slog.Logger, onOver func(*Room, model.MatchResult)) *Room {
	return &Room{
		id:         m.ID,
		players:    m.Players,
		match:      m,
		engine:     engine,
		notifier:   notifier,
		clock:      clk,
		tickPeriod: tickPeriod,
		logger:     logger.With(slog.String("room_id", string(m.ID))),
		onOver:     onOver,
		inbox:      make(chan command, inboxSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the room id
func (r *Room) ID() model.RoomID {
	return r.id
}

// Players returns both participants
func (r *Room) Players() model.Players {
	return r.players
}

// Done is closed once the worker has exited
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Advance submits an accepted answer from by
func (r *Room) Advance(by model.Username, answer string) {
	r.submit(command{kind: cmdAdvance, by: by, answer: answer})
}

// Skip submits a skip from by
func (r *Room) Skip(by model.Username) {
	r.submit(command{kind: cmdSkip, by: by})
}

// Leave submits a voluntary departure by who
func (r *Room) Leave(who model.Username) {
	r.submit(command{kind: cmdLeave, by: who})
}

// Forfeit ends the match against an identity that has gone away and waits
// until the outcome has been broadcast.
func (r *Room) Forfeit(ctx context.Context, who model.Username) error {
	handled := make(chan struct{})
	if !r.submit(command{kind: cmdForfeit, by: who, handled: handled}) {
		return nil
	}
	select {
	case <-handled:
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Snapshot returns the current state as seen by the worker
func (r *Room) Snapshot(ctx context.Context) (model.MatchSnapshot, error) {
	reply := make(chan model.MatchSnapshot, 1)
	if !r.submit(command{kind: cmdSnapshot, snapshot: reply}) {
		return model.MatchSnapshot{}, model.ErrRoomNotFound
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return model.MatchSnapshot{}, model.ErrRoomNotFound
	case <-ctx.Done():
		return model.MatchSnapshot{}, ctx.Err()
	}
}

// Sync sends the current room state to a single connection, in order with
// the room's broadcasts. It returns ErrRoomNotFound if the match ends before
// the worker gets to it.
func (r *Room) Sync(ctx context.Context, send func(model.Event) bool) error {
	handled := make(chan struct{})
	if !r.submit(command{kind: cmdSync, send: send, handled: handled}) {
		return model.ErrRoomNotFound
	}
	select {
	case <-handled:
		return nil
	case <-r.done:
		return model.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the worker and waits for it to exit. No tick fires once Stop returns.
// It must not be called from the worker itself.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	<-r.done
}

func (r *Room) submit(cmd command) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) run() {
	defer close(r.done)

	ticker := r.clock.NewTicker(r.tickPeriod)
	defer ticker.Stop()

	r.broadcast(r.engine.Start(r.match))

	for {
		select {
		case <-r.quit:
			r.logger.Info("room stopped")
			return
		case cmd := <-r.inbox:
			r.handle(cmd)
		case <-ticker.Chan():
			// A stop that raced with this tick wins
			select {
			case <-r.quit:
				r.logger.Info("room stopped")
				return
			default:
			}
			r.broadcast(r.engine.Tick(r.match))
		}

		if r.match.IsOver() {
			r.finish()
			return
		}
	}
}

func (r *Room) handle(cmd command) {
	if cmd.handled != nil {
		defer close(cmd.handled)
	}

	switch cmd.kind {
	case cmdAdvance:
		r.broadcast(r.engine.Advance(r.match, cmd.by, cmd.answer))
	case cmdSkip:
		r.broadcast(r.engine.Skip(r.match, cmd.by))
	case cmdLeave:
		r.broadcast(r.engine.Leave(r.match, cmd.by, model.OutcomeLeft))
	case cmdForfeit:
		r.broadcast(r.engine.Leave(r.match, cmd.by, model.OutcomeAbsent))
	case cmdSnapshot:
		cmd.snapshot <- r.match.Snapshot()
	case cmdSync:
		cmd.send(r.engine.State(r.match))
	}
}

func (r *Room) broadcast(events []model.Event) {
	for _, ev := range events {
		r.notifier.Notify(r.players.Initiator, ev)
		r.notifier.Notify(r.players.Responder, ev)
	}
}

func (r *Room) finish() {
	outcome := *r.match.Outcome
	now := r.clock.Now()

	r.logger.Info("match over",
		slog.String("winner", string(outcome.Winner)),
		slog.String("loser", string(outcome.Loser)),
		slog.String("reason", string(outcome.Reason)),
	)

	if r.onOver != nil {
		r.onOver(r, model.MatchResult{
			RoomID:   r.id,
			Players:  r.players,
			Settings: r.match.Settings,
			Outcome:  outcome,
			Duration: now.Sub(r.match.StartedAt),
			EndedAt:  now,
		})
	}
}
