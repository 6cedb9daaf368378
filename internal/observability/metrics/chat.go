package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat relay HTTP requests",
		},
		[]string{"method", "path"},
	)

	ChatRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_requests_in_flight",
			Help: "Number of chat relay HTTP requests currently being processed",
		},
	)

	ChatRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "Duration of chat relay HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ChatWebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	ChatWebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_websocket_connections_total",
			Help: "Total number of WebSocket connections established",
		},
	)

	ChatWebSocketHandshakeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_handshake_rejected_total",
			Help: "Total number of WebSocket handshakes rejected before upgrade",
		},
		[]string{"reason"},
	)

	ChatWebSocketDisconnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_disconnections_total",
			Help: "Total number of WebSocket disconnections",
		},
		[]string{"reason"},
	)

	ChatWebSocketBootstrapTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_bootstrap_total",
			Help: "Total number of connection bootstraps by result",
		},
		[]string{"result"},
	)

	ChatWebSocketErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_errors_total",
			Help: "Total number of WebSocket errors by type",
		},
		[]string{"error_type"},
	)

	ChatWebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_messages_total",
			Help: "Total number of inbound WebSocket events by type",
		},
		[]string{"message_type"},
	)

	ChatWebSocketDroppedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_websocket_dropped_messages_total",
			Help: "Total number of dropped messages due to slow clients or full queues",
		},
		[]string{"message_type"},
	)

	ChatWebSocketMessageProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_websocket_message_processing_duration_seconds",
			Help:    "Duration of WebSocket message processing in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"message_type"},
	)

	ChatWebSocketMessageProcessorQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_websocket_message_processor_queue_size",
			Help: "Current number of queued inbound WebSocket events",
		},
	)

	ChatSessionRegistryUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_session_registry_users",
			Help: "Number of users with at least one open connection",
		},
	)

	ChatRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Number of conversation rooms with at least one member",
		},
	)

	ChatBackendRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_backend_request_duration_seconds",
			Help:    "Duration of backend gateway calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures recorded by circuit breakers",
		},
		[]string{"name"},
	)

	RateLimitBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_blocked_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"scope"},
	)
)
