package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	commonhttp "github.com/AlibekovAA/booking-chat-relay/internal/common/http"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/httpmetrics"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/resilience"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

const (
	opFetchBookings = "fetch_bookings"
	opPostMessage   = "post_message"
	opMarkRead      = "mark_read"

	maxErrorBody = 512
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Body)
}

type HTTPGatewayConfig struct {
	BaseURL string
	Timeout time.Duration

	RetryMaxTries        uint
	RetryInitialInterval time.Duration
	RetryMaxDelay        time.Duration

	CBThreshold int32
	CBReset     time.Duration

	// Client overrides the default http.Client.
	Client *http.Client
	Logger *logger.Logger
}

type HTTPGateway struct {
	baseURL  string
	client   *http.Client
	breaker  *resilience.CircuitBreaker
	tracer   trace.Tracer
	maxTries uint
	initial  time.Duration
	maxDelay time.Duration
	log      *logger.Logger
}

func NewHTTPGateway(cfg HTTPGatewayConfig) *HTTPGateway {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	maxTries := cfg.RetryMaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	initial := cfg.RetryInitialInterval
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}

	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  cfg.CBThreshold,
			ResetAfter: cfg.CBReset,
			Name:       "backend",
			IsFailure: func(err error) bool {
				return !errors.Is(err, commonerrors.ErrAuthExpired)
			},
			Logger: cfg.Logger,
		}),
		tracer:   otel.Tracer("booking-chat-relay/backend"),
		maxTries: maxTries,
		initial:  initial,
		maxDelay: cfg.RetryMaxDelay,
		log:      cfg.Logger,
	}
}

func (g *HTTPGateway) FetchBookings(ctx context.Context, userID, token string) ([]domain.Booking, error) {
	path := "/api/bookings/user/" + url.PathEscape(userID)

	var bookings []domain.Booking
	err := g.retry(ctx, opFetchBookings, func(ctx context.Context) error {
		body, err := g.do(ctx, opFetchBookings, http.MethodGet, path, nil, token)
		if err != nil {
			return err
		}
		bookings, err = decodeBookings(body)
		if err != nil {
			return commonerrors.ErrBackendUnavailable.WithCause(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// PostMessage is at-most-once and never retried.
func (g *HTTPGateway) PostMessage(ctx context.Context, msg domain.Message, token string) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return commonerrors.ErrMarshalError.WithCause(err)
	}

	return g.observe(ctx, opPostMessage, func(ctx context.Context) error {
		_, err := g.do(ctx, opPostMessage, http.MethodPost, "/api/messages", payload, token)
		return err
	})
}

func (g *HTTPGateway) MarkRead(ctx context.Context, conversationID, token string) error {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/read"

	return g.retry(ctx, opMarkRead, func(ctx context.Context) error {
		_, err := g.do(ctx, opMarkRead, http.MethodPut, path, nil, token)
		return err
	})
}

// retry repeats fn while the backend is unavailable. Authorization failures
// and an open breaker stop the loop immediately.
func (g *HTTPGateway) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return g.observe(ctx, op, func(ctx context.Context) error {
		expo := backoff.NewExponentialBackOff()
		expo.InitialInterval = g.initial
		if g.maxDelay > 0 {
			expo.MaxInterval = g.maxDelay
		}

		attempt := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempt++
			err := fn(ctx)
			if err == nil {
				return struct{}{}, nil
			}
			if errors.Is(err, commonerrors.ErrAuthExpired) || errors.Is(err, commonerrors.ErrCircuitOpen) {
				return struct{}{}, backoff.Permanent(err)
			}
			if g.log != nil && uint(attempt) < g.maxTries {
				g.log.WithFields(ctx, logger.Fields{
					"action":    "backend_retry",
					"operation": op,
					"attempt":   attempt,
				}).Warnf("backend call failed, retrying: %v", err)
			}
			return struct{}{}, err
		}, backoff.WithBackOff(expo), backoff.WithMaxTries(g.maxTries))
		return err
	})
}

// observe wraps a whole operation, retries included, in a span and the
// duration histogram.
func (g *HTTPGateway) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	err = normalize(err)
	result := Classify(err)

	metrics.ChatBackendRequestDurationSeconds.WithLabelValues(op, result.String()).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("backend.result", result.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result.String())
	}
	return err
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, body []byte, token string) ([]byte, error) {
	var respBody []byte

	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return commonerrors.ErrBackendUnavailable.WithCause(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
			req.Header.Set(commonhttp.TraceIDHeader, traceID)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", httpmetrics.NormalizePath(path)),
		)

		resp, err := g.client.Do(req)
		if err != nil {
			return commonerrors.ErrBackendUnavailable.WithCause(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return commonerrors.ErrBackendUnavailable.WithCause(err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return commonerrors.ErrAuthExpired.WithCause(&StatusError{Status: resp.StatusCode, Body: truncate(data)})
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return commonerrors.ErrBackendUnavailable.WithCause(&StatusError{Status: resp.StatusCode, Body: truncate(data)})
		}

		respBody = data
		return nil
	})
	if err != nil {
		if g.log != nil {
			g.log.WithFields(ctx, logger.Fields{
				"action":    "backend_call_failed",
				"operation": op,
				"method":    method,
			}).Debugf("%v", err)
		}
		return nil, err
	}
	return respBody, nil
}

// normalize folds anything that is not already classified, like a cancelled
// context or an open breaker, into ErrBackendUnavailable.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, commonerrors.ErrAuthExpired) || errors.Is(err, commonerrors.ErrBackendUnavailable) {
		return err
	}
	return commonerrors.ErrBackendUnavailable.WithCause(err)
}

// decodeBookings accepts either a bare array or an object wrapping it under
// "bookings" or "data".
func decodeBookings(body []byte) ([]domain.Booking, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.Booking{}, nil
	}

	if trimmed[0] == '[' {
		var bookings []domain.Booking
		if err := json.Unmarshal(trimmed, &bookings); err != nil {
			return nil, fmt.Errorf("decode bookings: %w", err)
		}
		return bookings, nil
	}

	var wrapped struct {
		Bookings []domain.Booking `json:"bookings"`
		Data     []domain.Booking `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	if wrapped.Bookings != nil {
		return wrapped.Bookings, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []domain.Booking{}, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
