package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
)

type ClientConfig struct {
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadLimit:  32 * 1024,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 64,
	}
}

// Client owns one websocket. Only WritePump writes data frames; Send never
// blocks.
type Client struct {
	id     string
	conn   *websocket.Conn
	cfg    ClientConfig
	send   chan []byte
	done   chan struct{}
	logger logging.Logger

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, id string, cfg ClientConfig, logger logging.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	return &Client{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame. It reports false when the buffer is full or the
// client is closed; the frame is dropped in both cases.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump hands every inbound frame to handle, in arrival order, until the
// connection fails or is closed.
func (c *Client) ReadPump(handle func(raw []byte)) {
	if c.cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(c.cfg.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Warn(logging.Websocket, logging.Disconnect, "websocket read failed", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.ErrorMessage: err,
				})
			}
			return
		}
		handle(raw)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn(logging.Websocket, logging.Delivery, "websocket write failed", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.ErrorMessage: err,
				})
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close sends a close frame and tears the socket down. Safe to call more than
// once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
}
