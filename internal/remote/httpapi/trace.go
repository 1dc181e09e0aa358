package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"expensetracker/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the client-generated request id to the service.
const RequestIDHeader = "X-Request-ID"

// Metrics tracks outbound call counters
type Metrics struct {
	TotalRequests  int64
	FailedRequests int64
	LastDurationMs int64
}

// Transport logs every outbound call and stamps it with a request id
type Transport struct {
	next    http.RoundTripper
	logger  *log.Logger
	total   atomic.Int64
	failed  atomic.Int64
	lastDur atomic.Int64
}

// NewTransport wraps next; a nil next means http.DefaultTransport
func NewTransport(next http.RoundTripper, logger *log.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		next:   next,
		logger: log.OrDiscard(logger).WithComponent(log.ComponentHTTP),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	// RoundTrippers must not modify the caller's request
	req = req.Clone(ctx)
	req.Header.Set(RequestIDHeader, requestID)

	t.logger.DebugContext(ctx, "HTTP request started",
		log.FieldRequestID, requestID,
		log.FieldMethod, req.Method,
		log.FieldURL, req.URL.Redacted())

	t.total.Add(1)
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)
	t.lastDur.Store(duration.Milliseconds())

	if err != nil {
		t.failed.Add(1)
		t.logger.ErrorContext(ctx, "HTTP request failed",
			log.FieldRequestID, requestID,
			log.FieldMethod, req.Method,
			log.FieldURL, req.URL.Redacted(),
			log.FieldDuration, duration.Milliseconds(),
			log.FieldError, err)
		return nil, err
	}

	level := slog.LevelInfo
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
		t.failed.Add(1)
	}
	t.logger.LogContext(ctx, level, "HTTP request completed",
		log.FieldRequestID, requestID,
		log.FieldMethod, req.Method,
		log.FieldURL, req.URL.Redacted(),
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, duration.Milliseconds(),
		log.FieldSuccess, resp.StatusCode < 400)

	return resp, nil
}

// Metrics returns a snapshot of the counters
func (t *Transport) Metrics() Metrics {
	return Metrics{
		TotalRequests:  t.total.Load(),
		FailedRequests: t.failed.Load(),
		LastDurationMs: t.lastDur.Load(),
	}
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// WithRequestID pins the id used for calls made with ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
