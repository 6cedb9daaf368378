package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

type ClientConfig struct {
	WriteWait   time.Duration
	PongWait    time.Duration
	PingPeriod  time.Duration
	MaxMsgSize  int64
	SendBufSize int
}

type Client struct {
	connState

	id     string
	userID string
	token  string
	hub    *Hub
	conn   *gorillaWS.Conn
	cfg    ClientConfig
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *gorillaWS.Conn, id, userID, token string, cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.SendBufSize <= 0 {
		cfg.SendBufSize = 256
	}
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Client{
		id:     id,
		userID: userID,
		token:  token,
		hub:    hub,
		conn:   conn,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, cfg.SendBufSize),
	}
}

func (c *Client) ID() string               { return c.id }
func (c *Client) UserID() string           { return c.userID }
func (c *Client) Token() string            { return c.token }
func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send queues a frame without blocking. A full buffer drops the frame so one
// slow reader never stalls a room multicast.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return commonerrors.ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		metrics.ChatWebSocketDroppedMessages.WithLabelValues("outbound").Inc()
		return commonerrors.ErrQueueFull
	}
}

// Close stops accepting frames. Frames already queued are still flushed by
// the write pump before the close frame goes out.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

// Run drives the connection: the write pump starts first so bootstrap events
// can be delivered, and inbound frames are only read once bootstrap succeeded.
func (c *Client) Run() {
	go c.writePump()

	if !c.hub.Connect(c) {
		return
	}
	c.readPump()
}

func (c *Client) readPump() {
	reason := "client_closed"
	defer func() {
		c.hub.Disconnect(c, reason)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if gorillaWS.IsUnexpectedCloseError(err, gorillaWS.CloseGoingAway, gorillaWS.CloseNormalClosure, gorillaWS.CloseAbnormalClosure) {
				reason = "read_error"
				c.log.WithFields(c.ctx, logger.Fields{
					"conn_id": c.id,
					"user_id": c.userID,
					"action":  "ws_read_error",
				}).Warnf("websocket read error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.ChatWebSocketErrors.WithLabelValues("invalid_frame").Inc()
			c.log.WithFields(c.ctx, logger.Fields{
				"conn_id": c.id,
				"user_id": c.userID,
				"action":  "ws_invalid_frame",
			}).Warnf("websocket invalid frame: %v", err)
			if frame, err := marshalMessage(TypeError, "", ErrorPayload{
				Code:    commonerrors.ErrInvalidPayload.Code(),
				Message: commonerrors.ErrInvalidPayload.Message(),
			}); err == nil {
				_ = c.Send(frame)
			}
			continue
		}

		c.hub.HandleMessage(c, &msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(gorillaWS.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
