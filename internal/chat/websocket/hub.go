package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/backend"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/room"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/session"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/clock"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/credential"
	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

const messageUnavailableText = "message could not be delivered, please retry"

var (
	errEmptyPayload   = errors.New("payload is required")
	errNoStakeholders = errors.New("booking has no guest or owner")
)

type HubConfig struct {
	ProcessorWorkers   int
	ProcessorQueueSize int
	ProcessorTimeout   time.Duration
}

// Hub owns every live connection. It bootstraps new connections from the
// backend, keeps the session registry and rooms in step with them and
// terminates connections whose credential the backend rejects.
type Hub struct {
	clients     sync.Map
	clientCount atomic.Int64
	registry    session.Registry
	rooms       *room.Rooms[Connection]
	backend     backend.Gateway
	clock       clock.Clock
	processor   *MessageProcessor
	timeout     time.Duration
	log         *logger.Logger

	shuttingDown atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewHub(log *logger.Logger, registry session.Registry, gateway backend.Gateway, clk clock.Clock, config HubConfig) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	timeout := config.ProcessorTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hub := &Hub{
		registry: registry,
		rooms:    room.New[Connection](),
		backend:  gateway,
		clock:    clk,
		timeout:  timeout,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	router := NewMessageRouter(hub, NewDefaultValidator(), log)
	hub.processor = NewMessageProcessor(config.ProcessorWorkers, router, log, config.ProcessorQueueSize, timeout)

	return hub
}

// Connect registers conn and bootstraps it. It returns true when the
// connection is active and may start reading events; otherwise conn has
// already been terminated.
func (h *Hub) Connect(conn Connection) bool {
	conn.SetState(StateConnecting)
	h.clients.Store(conn.ID(), conn)
	total := h.clientCount.Add(1)
	metrics.ChatWebSocketConnectionsActive.Inc()
	metrics.ChatWebSocketConnectionsTotal.Inc()

	ctx := logger.WithTraceID(conn.Context(), uuid.NewString())
	fields := logger.Fields{
		"conn_id": conn.ID(),
		"user_id": conn.UserID(),
	}

	h.registry.Register(conn.UserID(), conn.ID())
	h.log.WithFields(ctx, withAction(fields, "ws_register", "total", total)).Info("websocket client registered")

	if h.shuttingDown.Load() {
		h.Disconnect(conn, "shutdown")
		return false
	}

	conn.SetState(StateBootstrapping)

	if credential.Expired(conn.Token(), h.clock.Now()) {
		metrics.ChatWebSocketBootstrapTotal.WithLabelValues("token_expired").Inc()
		h.expire(ctx, conn)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	bookings, err := h.backend.FetchBookings(ctx, conn.UserID(), conn.Token())
	result := backend.Classify(err)
	metrics.ChatWebSocketBootstrapTotal.WithLabelValues(result.String()).Inc()

	switch result {
	case backend.ResultOK:
	case backend.ResultAuthExpired:
		h.log.WithFields(ctx, withAction(fields, "ws_bootstrap_auth_expired")).Info("websocket bootstrap rejected by backend")
		h.expire(ctx, conn)
		return false
	default:
		h.log.WithFields(ctx, withAction(fields, "ws_bootstrap_failed")).Warnf("websocket bootstrap failed: %v", err)
		h.terminate(conn, "bootstrap_failed")
		return false
	}

	joined := h.ensureJoined([]Connection{conn}, domain.BookingsToRooms(bookings))
	h.sendTo(ctx, conn, TypeBookingsUpdated, "", nonNilBookings(bookings))

	if conn.Closed() {
		return false
	}
	conn.SetState(StateActive)

	h.log.WithFields(ctx, withAction(fields, "ws_bootstrap_complete", "bookings", len(bookings), "rooms", joined)).Info("websocket client bootstrapped")
	return true
}

// HandleMessage queues an inbound event on the connection's worker.
func (h *Hub) HandleMessage(conn Connection, msg *WSMessage) {
	err := h.processor.Submit(conn, msg)
	if err == nil {
		return
	}
	if msg.Type != TypeSendMessage || !errors.Is(err, commonerrors.ErrQueueFull) {
		return
	}

	h.sendTo(conn.Context(), conn, TypeMessageError, "", MessageErrorPayload{
		Error:           messageUnavailableText,
		OriginalMessage: msg.Payload,
	})
}

// SendMessage persists the message through the backend before relaying it,
// so clients only ever see messages the backend accepted.
func (h *Hub) SendMessage(ctx context.Context, conn Connection, req domain.MessageRequest) SendResult {
	msg := domain.NormalizeMessage(req, conn.UserID(), h.clock.Now())

	err := h.backend.PostMessage(ctx, msg, conn.Token())
	switch backend.Classify(err) {
	case backend.ResultOK:
		delivered := h.multicast(ctx, h.rooms.Members(msg.ConversationID), TypeMessageReceived, msg)
		h.log.WithFields(ctx, logger.Fields{
			"conn_id":         conn.ID(),
			"user_id":         conn.UserID(),
			"conversation_id": msg.ConversationID,
			"delivered":       delivered,
			"action":          "ws_message_relayed",
		}).Debug("websocket message relayed")
		return SendOK

	case backend.ResultAuthExpired:
		h.expire(ctx, conn)
		return SendAuthExpired

	default:
		h.log.WithFields(ctx, logger.Fields{
			"conn_id":         conn.ID(),
			"user_id":         conn.UserID(),
			"conversation_id": msg.ConversationID,
			"action":          "ws_message_persist_failed",
		}).Warnf("websocket message not persisted: %v", err)
		metrics.ChatWebSocketErrors.WithLabelValues("message_persist_failed").Inc()
		h.sendTo(ctx, conn, TypeMessageError, "", MessageErrorPayload{
			Error:           messageUnavailableText,
			OriginalMessage: req,
		})
		return SendUnavailable
	}
}

// OpenChat marks the conversation read. Failures are only logged.
func (h *Hub) OpenChat(ctx context.Context, conn Connection, conversationID string) {
	if err := h.backend.MarkRead(ctx, conversationID, conn.Token()); err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"conn_id":         conn.ID(),
			"user_id":         conn.UserID(),
			"conversation_id": conversationID,
			"result":          backend.Classify(err).String(),
			"action":          "ws_mark_read_failed",
		}).Warnf("websocket mark read failed: %v", err)
		return
	}

	h.multicast(ctx, h.rooms.Others(conversationID, conn.ID()), TypeMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		UserID:         conn.UserID(),
	})
}

// BookingCreated refreshes both stakeholders independently, using the
// credential of the connection that reported the booking.
func (h *Hub) BookingCreated(ctx context.Context, conn Connection, booking domain.Booking) {
	var g errgroup.Group
	for _, userID := range booking.Stakeholders() {
		g.Go(func() error {
			h.notifyStakeholder(ctx, conn, userID, booking)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Hub) notifyStakeholder(ctx context.Context, sender Connection, userID string, booking domain.Booking) {
	fields := logger.Fields{
		"conn_id":     sender.ID(),
		"stakeholder": userID,
		"booking_id":  booking.ID,
	}

	conns := h.liveConnections(h.registry.Lookup(userID))
	if len(conns) == 0 {
		h.log.WithFields(ctx, withAction(fields, "ws_stakeholder_offline")).Debug("websocket stakeholder offline, skipping")
		return
	}

	bookings, err := h.backend.FetchBookings(ctx, userID, sender.Token())
	if err != nil {
		h.log.WithFields(ctx, withAction(fields, "ws_stakeholder_refresh_failed", "result", backend.Classify(err).String())).Warnf("websocket stakeholder refresh failed: %v", err)
		return
	}

	rooms := domain.BookingsToRooms(bookings)
	if roomID, ok := booking.ConversationRoom(); ok {
		rooms = append(rooms, roomID)
	}
	h.ensureJoined(conns, rooms)

	payload := nonNilBookings(bookings)
	for _, c := range conns {
		h.sendTo(ctx, c, TypeBookingsUpdated, "", payload)
	}
}

func (h *Hub) Typing(ctx context.Context, conn Connection, conversationID string, isTyping bool) {
	h.multicast(ctx, h.rooms.Others(conversationID, conn.ID()), TypeTyping, TypingEventPayload{
		ConversationID: conversationID,
		UserID:         conn.UserID(),
		IsTyping:       isTyping,
	})
}

func (h *Hub) JoinRoom(ctx context.Context, conn Connection, conversationID string) {
	if !h.rooms.Join(conversationID, conn) {
		return
	}
	h.multicast(ctx, h.rooms.Others(conversationID, conn.ID()), TypeUserJoined, PresencePayload{
		ConversationID: conversationID,
		UserID:         conn.UserID(),
	})
}

func (h *Hub) LeaveRoom(ctx context.Context, conn Connection, conversationID string) {
	if !h.rooms.Leave(conversationID, conn) {
		return
	}
	h.multicast(ctx, h.rooms.Others(conversationID, conn.ID()), TypeUserLeft, PresencePayload{
		ConversationID: conversationID,
		UserID:         conn.UserID(),
	})
}

// Disconnect releases everything held for conn. It is safe to call more than
// once and from any goroutine.
func (h *Hub) Disconnect(conn Connection, reason string) {
	conn.Close()

	if _, loaded := h.clients.LoadAndDelete(conn.ID()); !loaded {
		return
	}

	left := h.rooms.LeaveAll(conn)
	remaining := h.registry.Unregister(conn.UserID(), conn.ID())
	total := h.clientCount.Add(-1)
	conn.SetState(StateDisconnected)

	metrics.ChatWebSocketConnectionsActive.Dec()
	metrics.ChatWebSocketDisconnections.WithLabelValues(reason).Inc()

	h.log.WithFields(conn.Context(), logger.Fields{
		"conn_id":   conn.ID(),
		"user_id":   conn.UserID(),
		"reason":    reason,
		"rooms":     len(left),
		"remaining": remaining,
		"total":     total,
		"action":    "ws_unregister",
	}).Info("websocket client unregistered")
}

// expire tells the client its credential is no longer accepted and then
// terminates the connection.
func (h *Hub) expire(ctx context.Context, conn Connection) {
	h.sendTo(ctx, conn, TypeTokenExpired, "", TokenExpiredPayload{
		Code:    commonerrors.ErrAuthExpired.Code(),
		Message: commonerrors.ErrAuthExpired.Message(),
	})
	h.terminate(conn, "token_expired")
}

func (h *Hub) terminate(conn Connection, reason string) {
	conn.SetState(StateTerminating)
	h.Disconnect(conn, reason)
}

// ensureJoined puts every connection into every room and returns the number
// of memberships that hold afterwards.
func (h *Hub) ensureJoined(conns []Connection, rooms []string) int {
	joined := 0
	for _, c := range conns {
		for _, roomID := range rooms {
			if h.rooms.Join(roomID, c) {
				joined++
			}
		}
	}
	return joined
}

func (h *Hub) liveConnections(ids []string) []Connection {
	out := make([]Connection, 0, len(ids))
	for _, id := range ids {
		value, ok := h.clients.Load(id)
		if !ok {
			continue
		}
		conn := value.(Connection)
		if conn.Closed() {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// multicast encodes the event once and offers it to each target. It returns
// how many targets accepted the frame.
func (h *Hub) multicast(ctx context.Context, targets []Connection, msgType MessageType, payload any) int {
	if len(targets) == 0 {
		return 0
	}

	frame, err := marshalMessage(msgType, "", payload)
	if err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"type":   string(msgType),
			"action": "ws_marshal",
		}).Errorf("websocket marshal error: %v", err)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			h.log.WithFields(ctx, logger.Fields{
				"conn_id": c.ID(),
				"type":    string(msgType),
				"action":  "ws_send_failed",
			}).Debugf("websocket send failed: %v", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) sendTo(ctx context.Context, conn Connection, msgType MessageType, id string, payload any) {
	frame, err := marshalMessage(msgType, id, payload)
	if err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"conn_id": conn.ID(),
			"type":    string(msgType),
			"action":  "ws_marshal",
		}).Errorf("websocket marshal error: %v", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"conn_id": conn.ID(),
			"type":    string(msgType),
			"action":  "ws_send_failed",
		}).Debugf("websocket send failed: %v", err)
	}
}

type UserPresence struct {
	UserID      string   `json:"userId"`
	Online      bool     `json:"online"`
	Connections int      `json:"connections"`
	Rooms       []string `json:"rooms"`
}

// Presence reports the user's live connections and the union of their rooms.
func (h *Hub) Presence(userID string) UserPresence {
	connIDs := h.registry.Lookup(userID)

	seen := make(map[string]struct{})
	rooms := make([]string, 0)
	for _, id := range connIDs {
		for _, roomID := range h.rooms.RoomsOf(id) {
			if _, ok := seen[roomID]; ok {
				continue
			}
			seen[roomID] = struct{}{}
			rooms = append(rooms, roomID)
		}
	}
	sort.Strings(rooms)

	return UserPresence{
		UserID:      userID,
		Online:      len(connIDs) > 0,
		Connections: len(connIDs),
		Rooms:       rooms,
	}
}

func (h *Hub) Stats() map[string]int {
	return map[string]int{
		"connections": int(h.clientCount.Load()),
		"users":       h.registry.Users(),
		"rooms":       h.rooms.Count(),
		"queued":      h.processor.Pending(),
	}
}

// Shutdown refuses new connections, drains queued events, tells every client
// the relay is going away and closes them.
func (h *Hub) Shutdown(ctx context.Context) error {
	if !h.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	drainErr := h.processor.Shutdown(ctx)

	conns := make([]Connection, 0)
	h.clients.Range(func(_, value any) bool {
		conns = append(conns, value.(Connection))
		return true
	})

	frame, err := marshalMessage(TypeShutdown, "", nil)
	for _, c := range conns {
		if err == nil {
			_ = c.Send(frame)
		}
		h.Disconnect(c, "shutdown")
	}
	h.cancel()

	h.log.WithFields(ctx, logger.Fields{
		"clients": len(conns),
		"action":  "ws_hub_shutdown",
	}).Info("websocket hub shutdown completed")

	return drainErr
}

func withAction(fields logger.Fields, action string, kv ...any) logger.Fields {
	out := make(logger.Fields, len(fields)+1+len(kv)/2)
	for k, v := range fields {
		out[k] = v
	}
	out["action"] = action
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out[key] = kv[i+1]
		}
	}
	return out
}

func nonNilBookings(bookings []domain.Booking) []domain.Booking {
	if bookings == nil {
		return []domain.Booking{}
	}
	return bookings
}
