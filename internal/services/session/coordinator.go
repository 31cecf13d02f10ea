package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/dependencies/random"
	"github.com/mcoot/capitalduel/internal/events"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/invitation"
	"github.com/mcoot/capitalduel/internal/services/match"
	"github.com/mcoot/capitalduel/internal/services/presence"
)

// ErrUnknownMessage is returned for a client message with an unrecognised type
var ErrUnknownMessage = errors.New("unknown message type")

// QuestionSource supplies and forgets question banks
type QuestionSource interface {
	Fetch(ctx context.Context, username model.Username) ([]model.Question, error)
	Forget(ctx context.Context, username model.Username) error
}

// Accounts forgets identities whose absence outlived the grace period
type Accounts interface {
	Forget(ctx context.Context, username model.Username) error
}

// ErrorEventFunc renders an error as an event for a client
type ErrorEventFunc func(err error) model.Event

// Config holds coordinator settings
type Config struct {
	GracePeriod     time.Duration
	DefaultSettings model.MatchSettings
	Match           match.Config

	// PurgeTimeout bounds the work done when an identity expires
	PurgeTimeout time.Duration
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		GracePeriod:     presence.DefaultGracePeriod,
		DefaultSettings: model.DefaultMatchSettings(),
		Match:           match.DefaultConfig(),
		PurgeTimeout:    10 * time.Second,
	}
}

// Stats summarises live activity
type Stats struct {
	Presence    presence.Stats
	ActiveRooms int
}

// Coordinator wires connection lifecycle to presence, invitations and rooms
type Coordinator struct {
	presence   *presence.Registry
	broker     *invitation.Broker
	rooms      *match.Manager
	questions  QuestionSource
	accounts   Accounts
	publisher  events.Publisher
	errorEvent ErrorEventFunc
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger
}

// New creates a Coordinator and the components it owns
func New(
	clk clock.Clock,
	rnd random.Random,
	questions QuestionSource,
	accounts Accounts,
	publisher events.Publisher,
	errorEvent ErrorEventFunc,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.DefaultSettings == (model.MatchSettings{}) {
		cfg.DefaultSettings = model.DefaultMatchSettings()
	}
	if cfg.PurgeTimeout <= 0 {
		cfg.PurgeTimeout = DefaultConfig().PurgeTimeout
	}
	if errorEvent == nil {
		errorEvent = defaultErrorEvent(clk)
	}

	c := &Coordinator{
		questions:  questions,
		accounts:   accounts,
		publisher:  publisher,
		errorEvent: errorEvent,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
	}
	c.presence = presence.New(clk, cfg.GracePeriod, logger)
	c.rooms = match.NewManager(clk, rnd, c, cfg.Match, logger)
	c.broker = invitation.New(c.presence, c, clk, logger)

	c.presence.OnExpired(c.identityExpired)
	c.rooms.OnResult(c.matchFinished)
	return c
}

// Connect registers a new connection for identity
func (c *Coordinator) Connect(identity model.Username, conn presence.Conn) {
	c.presence.Register(identity, conn)
}

// Disconnect deregisters a connection. Rooms are untouched; only grace expiry ends them.
func (c *Coordinator) Disconnect(identity model.Username, conn presence.Conn) {
	c.presence.Deregister(identity, conn)
}

// IsOnline reports whether identity has a live connection
func (c *Coordinator) IsOnline(identity model.Username) bool {
	return c.presence.IsPresent(identity)
}

// HandleMessage applies a client message sent by identity over conn.
// Errors are meant for that connection only.
func (c *Coordinator) HandleMessage(ctx context.Context, identity model.Username, conn presence.Conn, msg model.ClientMessage) error {
	switch msg.Type {
	case model.MessageInvite:
		return c.broker.Send(ctx, identity, msg.To, msg.Settings.Resolve(c.cfg.DefaultSettings))

	case model.MessageInviteResponse:
		if !msg.Accept {
			c.broker.Decline(ctx, msg.From, identity)
			return nil
		}
		_, err := c.broker.Accept(ctx, msg.From, identity, msg.Settings.Resolve(c.cfg.DefaultSettings))
		return err

	case model.MessageAnswerAccepted:
		if room := c.roomFor(msg.RoomID, identity); room != nil {
			room.Advance(identity, msg.Answer)
		}
		return nil

	case model.MessageSkip:
		if room := c.roomFor(msg.RoomID, identity); room != nil {
			room.Skip(identity)
		}
		return nil

	case model.MessageLeave:
		if room := c.roomFor(msg.RoomID, identity); room != nil {
			room.Leave(identity)
		}
		return nil

	case model.MessageRejoin:
		room := c.roomFor(msg.RoomID, identity)
		if room == nil {
			return model.ErrRoomNotFound
		}
		return room.Sync(ctx, conn.Send)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// StartMatch creates the room for an accepted invitation
func (c *Coordinator) StartMatch(ctx context.Context, players model.Players, settings model.MatchSettings) (model.MatchSnapshot, error) {
	pool, err := c.questions.Fetch(ctx, players.Initiator)
	if err != nil {
		return model.MatchSnapshot{}, err
	}

	_, snapshot, err := c.rooms.Create(players, settings, pool)
	if errors.Is(err, model.ErrNoQuestionsAvailable) {
		// The responder hears about it from the returned error
		c.presence.Send(players.Initiator, c.errorEvent(err))
	}
	if err != nil {
		c.logger.Info("match not started",
			slog.String("initiator", string(players.Initiator)),
			slog.String("responder", string(players.Responder)),
			slog.Any("error", err),
		)
		return model.MatchSnapshot{}, err
	}
	return snapshot, nil
}

// RoomState returns the state of a live room to one of its players
func (c *Coordinator) RoomState(ctx context.Context, requester model.Username, id model.RoomID) (model.MatchSnapshot, error) {
	room, err := c.rooms.Get(id)
	if err != nil {
		return model.MatchSnapshot{}, err
	}
	if !room.Players().Has(requester) {
		return model.MatchSnapshot{}, model.ErrNotParticipant
	}
	return room.Snapshot(ctx)
}

// PromptView renders a prompt the way rooms broadcast it
func (c *Coordinator) PromptView(q model.Question) model.PromptView {
	return c.rooms.Engine().PromptView(q)
}

// Notify delivers a room event to every connection of a player
func (c *Coordinator) Notify(to model.Username, ev model.Event) {
	c.presence.Send(to, ev)
}

// Stats returns a summary of live activity
func (c *Coordinator) Stats() Stats {
	return Stats{
		Presence:    c.presence.Stats(),
		ActiveRooms: c.rooms.Count(),
	}
}

// Shutdown cancels pending expiries and stops every room
func (c *Coordinator) Shutdown() {
	c.presence.Close()
	c.rooms.Shutdown()
}

func (c *Coordinator) roomFor(id model.RoomID, identity model.Username) *match.Room {
	room, err := c.rooms.Get(id)
	if err != nil || !room.Players().Has(identity) {
		return nil
	}
	return room
}

// identityExpired ends the identity's rooms, then forgets its data
func (c *Coordinator) identityExpired(identity model.Username) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PurgeTimeout)
	defer cancel()

	for _, room := range c.rooms.RoomsFor(identity) {
		if err := room.Forfeit(ctx, identity); err != nil {
			c.logger.Error("failed to forfeit room",
				slog.String("room_id", string(room.ID())),
				slog.String("username", string(identity)),
				slog.Any("error", err),
			)
		}
	}

	if err := c.questions.Forget(ctx, identity); err != nil {
		c.logger.Error("failed to forget questions", slog.String("username", string(identity)), slog.Any("error", err))
	}
	if err := c.accounts.Forget(ctx, identity); err != nil {
		c.logger.Error("failed to forget account", slog.String("username", string(identity)), slog.Any("error", err))
	}

	c.logger.Info("identity purged", slog.String("username", string(identity)))
}

func (c *Coordinator) matchFinished(result model.MatchResult) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishMatchResult(ctx, result); err != nil {
		c.logger.Error("failed to publish match result",
			slog.String("room_id", string(result.RoomID)),
			slog.Any("error", err),
		)
	}
}

func defaultErrorEvent(clk clock.Clock) ErrorEventFunc {
	return func(err error) model.Event {
		return model.Event{
			Type:      model.EventError,
			Timestamp: clk.Now(),
			Payload:   model.ErrorPayload{Code: "ERROR", Message: err.Error()},
		}
	}
}
