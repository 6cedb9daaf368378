package http

import (
	"expvar"
	"net/http"
	"strings"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/websocket"
	commonhttp "github.com/AlibekovAA/booking-chat-relay/internal/common/http"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/httpmetrics"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

type Config struct {
	ClientURL string
	Client    websocket.ClientConfig

	// HandshakeRPS limits upgrade attempts per client IP. Zero disables it.
	HandshakeRPS   float64
	HandshakeBurst int
}

type Handler struct {
	hub      *websocket.Hub
	upgrader gorillaWS.Upgrader
	cfg      Config
	log      *logger.Logger
}

// NewHandler serves the WebSocket endpoints next to health, presence,
// metrics and expvar. Only the REST routes go through the metrics middleware because its
// response recorder cannot be hijacked.
func NewHandler(hub *websocket.Hub, cfg Config, log *logger.Logger) http.Handler {
	h := &Handler{
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: gorillaWS.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.ClientURL),
			Error:           writeUpgradeError,
		},
	}

	restMux := http.NewServeMux()
	restMux.HandleFunc("/health", commonhttp.HealthHandler(hub))
	restMux.HandleFunc("/presence", h.handlePresence)
	restMux.Handle("/metrics", promhttp.Handler())
	restMux.Handle("/debug/vars", expvar.Handler())

	recovery := commonhttp.RecoveryMiddleware(log)
	traceID := commonhttp.TraceIDMiddleware
	wrappedRestMux := recovery(traceID(commonhttp.SecurityHeadersMiddleware(httpmetrics.New().Wrap(restMux))))

	handshakeLimit := commonhttp.NewRateLimiter(cfg.HandshakeRPS, cfg.HandshakeBurst).Middleware("ws_handshake")
	ws := recovery(traceID(handshakeLimit(http.HandlerFunc(h.handleWebSocket))))

	mainMux := http.NewServeMux()
	mainMux.Handle("/socket", ws)
	mainMux.Handle("/ws/", ws)
	mainMux.Handle("/", wrappedRestMux)

	return mainMux
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := logger.TraceIDFromContext(ctx)

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		metrics.ChatWebSocketHandshakeRejected.WithLabelValues("missing_user_id").Inc()
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingUserID, "userId query parameter is required", nil, traceID)
		return
	}

	token, ok := handshakeToken(r)
	if !ok {
		metrics.ChatWebSocketHandshakeRejected.WithLabelValues("missing_token").Inc()
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "credential is required", nil, traceID)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.ChatWebSocketHandshakeRejected.WithLabelValues("upgrade_failed").Inc()
		h.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"ip":      commonhttp.GetClientIP(r),
			"action":  "ws_upgrade_failed",
		}).Warnf("websocket upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	h.log.WithFields(ctx, logger.Fields{
		"conn_id": connID,
		"user_id": userID,
		"ip":      commonhttp.GetClientIP(r),
		"action":  "ws_connected",
	}).Info("websocket connection accepted")

	client := websocket.NewClient(h.hub, conn, connID, userID, token, h.cfg.Client, h.log)
	go client.Run()
}

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	traceID := logger.TraceIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		commonhttp.WriteErrorEnvelope(w, http.StatusMethodNotAllowed, commonhttp.CodeMethodNotAllowed, "method not allowed", nil, traceID)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeMissingUserID, "userId query parameter is required", nil, traceID)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, h.hub.Presence(userID))
}

func writeUpgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	code := commonhttp.CodeUnknown
	if status == http.StatusForbidden {
		code = commonhttp.CodeOriginNotAllowed
	}
	commonhttp.WriteErrorEnvelope(w, status, code, reason.Error(), nil, logger.TraceIDFromContext(r.Context()))
}

// handshakeToken looks for the credential in the Authorization header, then
// in the token and auth query parameters.
func handshakeToken(r *http.Request) (string, bool) {
	if token, ok := commonhttp.BearerToken(r); ok {
		return token, true
	}

	query := r.URL.Query()
	for _, key := range []string{"token", "auth"} {
		value := strings.TrimSpace(query.Get(key))
		value = strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func originChecker(clientURL string) func(r *http.Request) bool {
	allowed := strings.TrimRight(clientURL, "/")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "*" {
			return true
		}
		if strings.TrimRight(origin, "/") == allowed {
			return true
		}
		metrics.ChatWebSocketHandshakeRejected.WithLabelValues("origin_not_allowed").Inc()
		return false
	}
}
