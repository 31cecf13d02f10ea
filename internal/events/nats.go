package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
)

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns defaults for a local NATS server
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "capitalduel",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// msgPublisher is the part of *nats.Conn the publisher needs
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes outcomes as core NATS messages
type NATSPublisher struct {
	conn   msgPublisher
	nc     *nats.Conn
	cfg    NATSConfig
	clock  clock.Clock
	logger *slog.Logger
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(cfg NATSConfig, clk clock.Clock, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	opts := []nats.Option{
		nats.Name("capitalduel"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", slog.Any("error", err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := newNATSPublisher(nc, cfg, clk, logger)
	p.nc = nc
	return p, nil
}

func newNATSPublisher(conn msgPublisher, cfg NATSConfig, clk clock.Clock, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, cfg: cfg, clock: clk, logger: logger}
}

// Subject returns the subject match outcomes are published on
func (p *NATSPublisher) Subject() string {
	return fmt.Sprintf("%s.%s", p.cfg.SubjectPrefix, EventTypeMatchOver)
}

// PublishMatchResult publishes the outcome of a match
func (p *NATSPublisher) PublishMatchResult(ctx context.Context, result model.MatchResult) error {
	env := Envelope{
		EventID:   uuid.NewString(),
		EventType: EventTypeMatchOver,
		Timestamp: p.clock.Now().UTC(),
		Payload:   NewMatchOverRecord(result),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.Subject(),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{env.EventType},
			"Event-ID":   []string{env.EventID},
			"Room-ID":    []string{string(result.RoomID)},
		},
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}

	p.logger.Info("published match result",
		slog.String("subject", msg.Subject),
		slog.String("event_id", env.EventID),
		slog.String("room_id", string(result.RoomID)),
	)
	return nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
