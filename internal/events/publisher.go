// Package events publishes match outcomes to other systems.
package events

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/capitalduel/internal/model"
)

// EventTypeMatchOver names the event published when a match ends
const EventTypeMatchOver = "match.over"

// Publisher announces finished matches. Nothing is stored.
type Publisher interface {
	PublishMatchResult(ctx context.Context, result model.MatchResult) error
	Close() error
}

// Envelope is the wire format of a published event
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   MatchOverRecord `json:"payload"`
}

// MatchOverRecord describes a finished match
type MatchOverRecord struct {
	RoomID          model.RoomID        `json:"room"`
	Initiator       model.Username      `json:"initiator"`
	Responder       model.Username      `json:"responder"`
	Winner          model.Username      `json:"winner"`
	Loser           model.Username      `json:"loser"`
	Reason          model.OutcomeReason `json:"reason"`
	Settings        model.MatchSettings `json:"settings"`
	DurationSeconds float64             `json:"duration_seconds"`
}

// NewMatchOverRecord converts a result for publishing
func NewMatchOverRecord(result model.MatchResult) MatchOverRecord {
	return MatchOverRecord{
		RoomID:          result.RoomID,
		Initiator:       result.Players.Initiator,
		Responder:       result.Players.Responder,
		Winner:          result.Outcome.Winner,
		Loser:           result.Outcome.Loser,
		Reason:          result.Outcome.Reason,
		Settings:        result.Settings,
		DurationSeconds: result.Duration.Seconds(),
	}
}

// LogPublisher writes outcomes to the application log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LogPublisher{logger: logger}
}

// PublishMatchResult logs the outcome
func (p *LogPublisher) PublishMatchResult(ctx context.Context, result model.MatchResult) error {
	p.logger.InfoContext(ctx, "match result",
		slog.String("event_type", EventTypeMatchOver),
		slog.String("room_id", string(result.RoomID)),
		slog.String("winner", string(result.Outcome.Winner)),
		slog.String("loser", string(result.Outcome.Loser)),
		slog.String("reason", string(result.Outcome.Reason)),
		slog.Duration("duration", result.Duration),
	)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

var (
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*NATSPublisher)(nil)
)
