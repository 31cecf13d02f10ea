package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
)

// Connection is one client websocket. Events queue on a bounded buffer
// drained by the write pump; a full buffer closes the connection.
type Connection struct {
	id       string
	username model.Username
	conn     *websocket.Conn
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger

	send      chan model.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, username model.Username, clk clock.Clock, cfg Config, logger *slog.Logger) *Connection {
	id := uuid.New().String()
	return &Connection{
		id:       id,
		username: username,
		conn:     conn,
		cfg:      cfg,
		clock:    clk,
		logger:   logger.With(slog.String("connection_id", id), slog.String("username", string(username))),
		send:     make(chan model.Event, cfg.SendBuffer),
		done:     make(chan struct{}),
	}
}

// ID returns the connection's unique id
func (c *Connection) ID() string {
	return c.id
}

// Send queues an event without blocking. It reports false if the
// connection is closed or too slow to keep up.
func (c *Connection) Send(ev model.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("send buffer full, closing connection", slog.String("event_type", string(ev.Type)))
		c.Close()
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump pings on the injected clock. Socket deadlines are checked by
// the network poller against wall time, so they always use time.Now.
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("failed to marshal event", slog.String("event_type", string(ev.Type)), slog.Any("error", err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", slog.Any("error", err))
				return
			}

		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.Any("error", err))
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

// readPump delivers each inbound message to handle until the socket fails
func (c *Connection) readPump(handle func(data []byte)) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.Any("error", err))
			}
			return
		}
		handle(data)
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
}
