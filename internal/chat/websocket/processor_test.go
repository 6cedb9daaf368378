package websocket

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
)

type routeFunc func(ctx context.Context, conn Connection, msg *WSMessage) error

func (f routeFunc) Route(ctx context.Context, conn Connection, msg *WSMessage) error {
	return f(ctx, conn, msg)
}

func TestProcessor_PreservesPerConnectionOrder(t *testing.T) {
	req := require.New(t)

	var mu sync.Mutex
	seen := make(map[string][]string)
	var wg sync.WaitGroup

	router := routeFunc(func(_ context.Context, conn Connection, msg *WSMessage) error {
		defer wg.Done()
		mu.Lock()
		seen[conn.ID()] = append(seen[conn.ID()], msg.ID)
		mu.Unlock()
		return nil
	})
	p := NewMessageProcessor(4, router, logger.NewWithWriter(io.Discard, "test", "debug"), 1024, time.Second)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	conns := []*fakeConn{newFakeConn("c1", "A"), newFakeConn("c2", "B"), newFakeConn("c3", "C")}
	const perConn = 50
	want := make([]string, 0, perConn)
	for i := 0; i < perConn; i++ {
		want = append(want, fmt.Sprint(i))
	}

	wg.Add(perConn * len(conns))
	for i := 0; i < perConn; i++ {
		for _, c := range conns {
			req.NoError(p.Submit(c, &WSMessage{Type: TypeTyping, ID: fmt.Sprint(i)}))
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, c := range conns {
		req.Equal(want, seen[c.ID()], c.ID())
	}
}

func TestProcessor_QueueFull(t *testing.T) {
	req := require.New(t)
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	router := routeFunc(func(context.Context, Connection, *WSMessage) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	p := NewMessageProcessor(1, router, logger.NewWithWriter(io.Discard, "test", "debug"), 1, time.Second)
	conn := newFakeConn("c1", "A")

	req.NoError(p.Submit(conn, &WSMessage{Type: TypeTyping}))
	<-started
	req.NoError(p.Submit(conn, &WSMessage{Type: TypeTyping}))
	req.ErrorIs(p.Submit(conn, &WSMessage{Type: TypeTyping}), commonerrors.ErrQueueFull)
	req.Equal(1, p.Pending())

	close(release)
	req.NoError(p.Shutdown(context.Background()))
	req.Zero(p.Pending())
}

func TestProcessor_RejectsAfterShutdown(t *testing.T) {
	p := NewMessageProcessor(1, routeFunc(func(context.Context, Connection, *WSMessage) error { return nil }), logger.NewWithWriter(io.Discard, "test", "info"), 4, time.Second)

	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
	require.ErrorIs(t, p.Submit(newFakeConn("c1", "A"), &WSMessage{Type: TypeTyping}), commonerrors.ErrConnectionClosed)
}

func TestProcessor_SkipsClosedConnections(t *testing.T) {
	called := make(chan struct{}, 1)
	p := NewMessageProcessor(1, routeFunc(func(context.Context, Connection, *WSMessage) error {
		called <- struct{}{}
		return nil
	}), logger.NewWithWriter(io.Discard, "test", "info"), 4, time.Second)

	conn := newFakeConn("c1", "A")
	conn.Close()
	require.NoError(t, p.Submit(conn, &WSMessage{Type: TypeTyping}))
	require.NoError(t, p.Shutdown(context.Background()))

	require.Len(t, called, 0)
}
