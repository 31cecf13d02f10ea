package invitation

import (
	"context"
	"io"
	"log/slog"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
)

// Presence locates the live connections of an identity
type Presence interface {
	IsPresent(identity model.Username) bool
	Send(identity model.Username, ev model.Event) int
}

// MatchStarter creates a room once an invitation is accepted
type MatchStarter interface {
	StartMatch(ctx context.Context, players model.Players, settings model.MatchSettings) (model.MatchSnapshot, error)
}

// Broker routes invitations between connected identities. Invitations are
// never stored: they exist only as the messages in flight.
type Broker struct {
	presence Presence
	starter  MatchStarter
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a Broker. Settings reach it already resolved; the broker only
// validates them.
func New(presence Presence, starter MatchStarter, clk clock.Clock, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Broker{
		presence: presence,
		starter:  starter,
		clock:    clk,
		logger:   logger,
	}
}

// Send delivers an invitation to every connection of to. If to has no
// connection the invitation is dropped and the sender is not told.
func (b *Broker) Send(ctx context.Context, from, to model.Username, settings model.MatchSettings) error {
	if err := b.check(from, to, settings); err != nil {
		return err
	}

	delivered := b.presence.Send(to, model.Event{
		Type:      model.EventInvitationReceived,
		Timestamp: b.clock.Now(),
		Payload: model.InvitationReceivedPayload{
			From:     from,
			Settings: settings,
		},
	})

	b.logger.Info("invitation sent",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Int("delivered", delivered),
	)
	return nil
}

// Accept starts a match between from (the initiator) and to (the responder).
// Both must be connected.
func (b *Broker) Accept(ctx context.Context, from, to model.Username, settings model.MatchSettings) (model.MatchSnapshot, error) {
	if err := b.check(from, to, settings); err != nil {
		return model.MatchSnapshot{}, err
	}

	if !b.presence.IsPresent(from) || !b.presence.IsPresent(to) {
		b.logger.Info("invitation accept rejected",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.String("reason", "participant unavailable"),
		)
		return model.MatchSnapshot{}, model.ErrParticipantUnavailable
	}

	return b.starter.StartMatch(ctx, model.Players{Initiator: from, Responder: to}, settings)
}

// Decline tells the initiator, if connected, that to turned the invitation down
func (b *Broker) Decline(ctx context.Context, from, to model.Username) {
	b.presence.Send(from, model.Event{
		Type:      model.EventInvitationDeclined,
		Timestamp: b.clock.Now(),
		Payload:   model.InvitationDeclinedPayload{By: to},
	})

	b.logger.Info("invitation declined",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

func (b *Broker) check(from, to model.Username, settings model.MatchSettings) error {
	if from == to {
		return model.ErrSelfInvite
	}
	return settings.Validate()
}
