package websocket

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

type messageTask struct {
	conn Connection
	msg  *WSMessage
}

// MessageProcessor runs inbound events on a fixed pool of workers. Every
// connection hashes onto one worker, so its events are handled one at a time
// in arrival order while other connections proceed in parallel.
type MessageProcessor struct {
	queues  []chan messageTask
	router  MessageRouter
	log     *logger.Logger
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	pending atomic.Int64
	wg      sync.WaitGroup
}

func NewMessageProcessor(workers int, router MessageRouter, log *logger.Logger, queueSize int, timeout time.Duration) *MessageProcessor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	perWorker := queueSize / workers
	if perWorker < 1 {
		perWorker = 1
	}

	p := &MessageProcessor{
		queues:  make([]chan messageTask, workers),
		router:  router,
		log:     log,
		timeout: timeout,
	}

	for i := range p.queues {
		p.queues[i] = make(chan messageTask, perWorker)
		p.wg.Add(1)
		go p.worker(p.queues[i])
	}

	return p
}

func (p *MessageProcessor) worker(queue chan messageTask) {
	defer p.wg.Done()
	for task := range queue {
		p.pending.Add(-1)
		metrics.ChatWebSocketMessageProcessorQueueSize.Set(float64(p.pending.Load()))
		p.process(task.conn, task.msg)
	}
}

func (p *MessageProcessor) process(conn Connection, msg *WSMessage) {
	if conn.Closed() {
		return
	}

	start := time.Now()
	// Handlers outlive the sender's connection; only the timeout bounds them.
	ctx := logger.WithTraceID(context.WithoutCancel(conn.Context()), uuid.NewString())
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.router.Route(ctx, conn, msg); err != nil {
		p.log.WithFields(ctx, logger.Fields{
			"conn_id": conn.ID(),
			"user_id": conn.UserID(),
			"type":    string(msg.Type),
			"action":  "ws_message_processing_failed",
		}).Warnf("websocket message processing failed: %v", err)
	}

	metrics.ChatWebSocketMessageProcessingDurationSeconds.WithLabelValues(msg.Type.metricLabel()).Observe(time.Since(start).Seconds())
}

// Submit enqueues msg on the connection's worker without blocking.
func (p *MessageProcessor) Submit(conn Connection, msg *WSMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return commonerrors.ErrConnectionClosed
	}

	queue := p.queues[p.slot(conn.ID())]
	select {
	case queue <- messageTask{conn: conn, msg: msg}:
		metrics.ChatWebSocketMessageProcessorQueueSize.Set(float64(p.pending.Add(1)))
		return nil
	default:
		p.log.WithFields(conn.Context(), logger.Fields{
			"conn_id": conn.ID(),
			"user_id": conn.UserID(),
			"type":    string(msg.Type),
			"action":  "ws_queue_full",
		}).Warn("websocket message queue full")
		metrics.ChatWebSocketDroppedMessages.WithLabelValues(msg.Type.metricLabel()).Inc()
		return commonerrors.ErrQueueFull
	}
}

func (p *MessageProcessor) slot(connID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *MessageProcessor) Pending() int {
	return int(p.pending.Load())
}

// Shutdown stops intake and waits for queued events until ctx expires.
func (p *MessageProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
