package websocket

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
	"github.com/AlibekovAA/booking-chat-relay/internal/chat/session"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/clock"
	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeConn struct {
	connState

	id     string
	userID string
	token  string
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	frames []WSMessage
	closed bool
}

func newFakeConn(id, userID string) *fakeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeConn{id: id, userID: userID, token: "tok-" + userID, ctx: ctx, cancel: cancel}
}

func (c *fakeConn) ID() string               { return c.id }
func (c *fakeConn) UserID() string           { return c.userID }
func (c *fakeConn) Token() string            { return c.token }
func (c *fakeConn) Context() context.Context { return c.ctx }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return commonerrors.ErrConnectionClosed
	}
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return err
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
}

func (c *fakeConn) Frames() []WSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WSMessage(nil), c.frames...)
}

func (c *fakeConn) FramesOf(t MessageType) []WSMessage {
	var out []WSMessage
	for _, f := range c.Frames() {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) Types() []MessageType {
	var out []MessageType
	for _, f := range c.Frames() {
		out = append(out, f.Type)
	}
	return out
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type mockGateway struct {
	fetchBookingsFunc func(ctx context.Context, userID, token string) ([]domain.Booking, error)
	postMessageFunc   func(ctx context.Context, msg domain.Message, token string) error
	markReadFunc      func(ctx context.Context, conversationID, token string) error
}

func (m *mockGateway) FetchBookings(ctx context.Context, userID, token string) ([]domain.Booking, error) {
	if m.fetchBookingsFunc != nil {
		return m.fetchBookingsFunc(ctx, userID, token)
	}
	return nil, nil
}

func (m *mockGateway) PostMessage(ctx context.Context, msg domain.Message, token string) error {
	if m.postMessageFunc != nil {
		return m.postMessageFunc(ctx, msg, token)
	}
	return nil
}

func (m *mockGateway) MarkRead(ctx context.Context, conversationID, token string) error {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, conversationID, token)
	}
	return nil
}

func setupHub(t *testing.T, gw *mockGateway) (*Hub, *session.MemoryRegistry) {
	t.Helper()
	registry := session.NewMemoryRegistry()
	hub := NewHub(logger.NewWithWriter(io.Discard, "test", "debug"), registry, gw, clock.NewMockClock(testNow), HubConfig{
		ProcessorWorkers:   2,
		ProcessorQueueSize: 16,
		ProcessorTimeout:   5 * time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub, registry
}

func booking(id, guest, owner, conversationID string, active bool) domain.Booking {
	raw, _ := json.Marshal(map[string]any{
		"_id":          id,
		"guest":        guest,
		"property":     map[string]any{"owner": owner},
		"conversation": map[string]any{"_id": conversationID, "active": active},
	})
	var b domain.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		panic(err)
	}
	return b
}

// bookingsByUser answers FetchBookings from a fixed table.
func bookingsByUser(table map[string][]domain.Booking) func(context.Context, string, string) ([]domain.Booking, error) {
	return func(_ context.Context, userID, _ string) ([]domain.Booking, error) {
		return table[userID], nil
	}
}

func decodePayload[T any](t *testing.T, msg WSMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
	return out
}
