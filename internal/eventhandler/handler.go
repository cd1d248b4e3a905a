// Package eventhandler is the HTTP boundary of the ingest service. It turns
// storage CloudEvents into domain notifications and maps the ingestion result
// onto the status codes the delivery layer understands: 2xx to acknowledge,
// anything else to retry.
package eventhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"csv-ingest/internal/domain"
	"csv-ingest/internal/metrics"
	"csv-ingest/internal/middleware"
)

// maxEventBytes caps the request body; storage events are a few KB.
const maxEventBytes = 1 << 20

// maxLoggedData bounds how much of the event data is echoed to the debug log.
const maxLoggedData = 2000

// Ingester handles one notification.
type Ingester interface {
	Handle(ctx context.Context, n domain.Notification) (*domain.Result, error)
}

// HandlerConfig holds the parameters needed to build the HTTP handler.
type HandlerConfig struct {
	Ingester  Ingester
	Logger    *slog.Logger
	StartTime time.Time
	RateLimit middleware.RateLimitConfig
}

// objectData is the subset of the storage object resource the service reads.
type objectData struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// NewHandler builds the service's http.Handler with POST / (event delivery),
// GET /healthz and GET /metrics.
func NewHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{ingester: cfg.Ingester, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)

	r.With(middleware.RateLimiter(cfg.RateLimit)).Post("/", h.handleEvent)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int(time.Since(cfg.StartTime).Seconds()),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func (h *handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	log := h.logger.With("request_id", requestID)

	n, err := h.decode(w, r, log)
	if err != nil {
		log.Error("undecodable event", "error", err)
		metrics.NotificationCount.WithLabelValues(metrics.ResultBadPayload).Inc()
		http.Error(w, "Bad event payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.ingester.Handle(r.Context(), n)
	if err != nil {
		h.writeError(w, requestID, err)
		return
	}
	if res.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res.Outcome)
}

// decode reads a CloudEvent in binary or structured mode. A body that is not
// a CloudEvent is treated as the bare storage object resource, which is what
// a manual replay with curl sends.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger) (domain.Notification, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		return domain.Notification{}, fmt.Errorf("read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var (
		n    domain.Notification
		data []byte
	)
	if ev, err := cehttp.NewEventFromHTTPRequest(r); err == nil {
		n = notificationFromEvent(ev)
		data = ev.Data()
	} else {
		log.Debug("request is not a CloudEvent; decoding body as object resource", "reason", err)
		data = body
	}

	log.Info("event received",
		"event_id", n.EventID, "event_type", n.EventType, "subject", n.Subject,
		"data_keys", dataKeys(data))
	log.Debug("event data", "data", truncate(data, maxLoggedData))

	if len(bytes.TrimSpace(data)) == 0 {
		return n, nil
	}
	var obj objectData
	if err := json.Unmarshal(data, &obj); err != nil {
		return domain.Notification{}, fmt.Errorf("decode event data: %w", err)
	}
	n.Bucket = obj.Bucket
	n.Name = obj.Name
	return n, nil
}

func notificationFromEvent(ev *cloudevents.Event) domain.Notification {
	return domain.Notification{
		EventID:   ev.ID(),
		EventType: ev.Type(),
		Subject:   ev.Subject(),
		Source:    ev.Source(),
	}
}

// writeError maps service errors to responses. Fatal errors were already
// logged with their stack by the service.
func (h *handler) writeError(w http.ResponseWriter, requestID string, err error) {
	status := statusFromError(err)
	var fatal *domain.FatalError
	if !errors.As(err, &fatal) {
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"error":      err.Error(),
		"kind":       fatal.Kind,
		"request_id": requestID,
	})
}

// statusFromError maps domain errors to HTTP status codes. Only a bad
// payload is the caller's fault; configuration and downstream failures are
// 500 so the delivery layer keeps the event for retry.
func statusFromError(err error) int {
	var badPayload *domain.BadPayloadError
	if errors.As(err, &badPayload) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func dataKeys(data []byte) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
