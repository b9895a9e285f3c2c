package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/webhook-router/internal/common"
	"github.com/example/webhook-router/internal/connector"
	"github.com/example/webhook-router/internal/dispatch"
	"github.com/example/webhook-router/internal/events"
	"github.com/example/webhook-router/internal/ratelimit"
	"github.com/example/webhook-router/internal/submission"
)

var (
	submitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_submissions_total",
		Help: "Submission requests by terminal status",
	}, []string{"status"})
	submitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_submission_duration_seconds",
		Help:    "End-to-end latency for accepted submissions",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	codeRateLimited       = "rate_limit_exceeded"
	codeValidation        = "validation_error"
	codeConnectorNotFound = "connector_not_found"
	codeConnectorInactive = "connector_inactive"
	codeStorage           = "storage_error"
	codeInternal          = "internal_error"
)

type errorBody struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Field     string     `json:"field,omitempty"`
	Remaining *int       `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type successResponse struct {
	Success      bool                          `json:"success"`
	SubmissionID string                        `json:"submissionId"`
	Results      map[string]submission.Outcome `json:"results"`
}

type Handler struct {
	connectors  ConnectorStore
	submissions SubmissionStore
	coordinator Dispatcher
	limiter     *ratelimit.Limiter
	publisher   EventPublisher
	cfg         *common.Config
	tracer      trace.Tracer
	logger      zerolog.Logger
}

func NewHandler(
	connectors ConnectorStore,
	submissions SubmissionStore,
	coordinator Dispatcher,
	limiter *ratelimit.Limiter,
	publisher EventPublisher,
	cfg *common.Config,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		connectors:  connectors,
		submissions: submissions,
		coordinator: coordinator,
		limiter:     limiter,
		publisher:   publisher,
		cfg:         cfg,
		tracer:      otel.Tracer("ingest"),
		logger:      logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Options("/submit/{connectorID}", h.preflight)
	r.Post("/submit/{connectorID}", h.submit)
	return r
}

// submit runs the ingestion gates in fixed order: rate limit, validate,
// look up, active check, insert. Cheap checks come first, and nothing
// touches the database for a request that fails them.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "submit")
	defer span.End()

	allowCORS(w)
	webhookID := chi.URLParam(r, "connectorID")
	span.SetAttributes(attribute.String("connector.webhook_id", webhookID))

	decision := h.limiter.Check(webhookID, h.cfg.RateLimitMax, h.cfg.RateLimitWindow)
	if !decision.Allowed {
		w.Header().Set("Retry-After", retryAfterSeconds(decision.ResetAt))
		h.respondError(ctx, w, http.StatusTooManyRequests, errorBody{
			Code:      codeRateLimited,
			Message:   "rate limit exceeded for this connector",
			Remaining: &decision.Remaining,
			ResetAt:   &decision.ResetAt,
		})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes*2))
	if err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, errorBody{
			Code:    codeValidation,
			Message: "could not read request body",
		})
		return
	}
	payload, verr := ValidatePayload(raw)
	if verr != nil {
		h.respondError(ctx, w, http.StatusBadRequest, errorBody{
			Code:    codeValidation,
			Message: verr.Reason,
			Field:   verr.Field,
		})
		return
	}

	conn, err := h.connectors.GetByWebhookID(ctx, webhookID)
	if err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			h.respondError(ctx, w, http.StatusNotFound, errorBody{
				Code:    codeConnectorNotFound,
				Message: "no connector matches this URL",
			})
			return
		}
		h.logger.Error().Err(err).Str("webhook_id", webhookID).Msg("connector lookup failed")
		h.respondError(ctx, w, http.StatusInternalServerError, errorBody{
			Code:    codeStorage,
			Message: "could not load connector",
		})
		return
	}
	if !conn.Active {
		h.respondError(ctx, w, http.StatusForbidden, errorBody{
			Code:    codeConnectorInactive,
			Message: "connector is inactive",
		})
		return
	}

	start := time.Now()

	// The submitter may disconnect mid-dispatch; deliveries and the
	// outcome write still run to completion.
	detached := context.WithoutCancel(ctx)

	submissionID, err := h.submissions.Insert(detached, conn.ID, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("connector_id", conn.ID).Msg("submission insert failed")
		h.respondError(ctx, w, http.StatusInternalServerError, errorBody{
			Code:    codeStorage,
			Message: "could not store submission",
		})
		return
	}
	span.SetAttributes(attribute.String("submission.id", submissionID))

	outcomes := h.coordinator.Dispatch(detached, conn.Destinations, payload, dispatch.Meta{
		ConnectorID:   conn.ID,
		ConnectorName: conn.Name,
	})

	// Best-effort: the submission is already durable, so a failed
	// outcome write is logged without changing the response.
	if err := h.submissions.UpdateOutcomes(detached, submissionID, outcomes); err != nil {
		h.logger.Error().Err(err).Str("submission_id", submissionID).Msg("failed to persist outcomes")
	}
	h.publishEvent(detached, conn.ID, submissionID, outcomes)

	submitCounter.WithLabelValues("accepted").Inc()
	submitLatency.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(successResponse{
		Success:      true,
		SubmissionID: submissionID,
		Results:      outcomes,
	})
}

func (h *Handler) publishEvent(ctx context.Context, connectorID, submissionID string, outcomes map[string]submission.Outcome) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.SubmissionProcessed(ctx, events.SubmissionProcessed{
		SubmissionID: submissionID,
		ConnectorID:  connectorID,
		Results:      outcomes,
		ProcessedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("submission_id", submissionID).Msg("activity event publish failed")
	}
}

func (h *Handler) preflight(w http.ResponseWriter, _ *http.Request) {
	allowCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// allowCORS is intentionally permissive: the ingestion URL is a public
// endpoint any browser-hosted form may post to.
func allowCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, body errorBody) {
	logger := common.WithContext(ctx, h.logger)
	logger.Info().Int("status", status).Str("code", body.Code).Str("reason", body.Message).Msg("submission rejected")
	submitCounter.WithLabelValues(body.Code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Error: body})
}

// recoverer turns panics anywhere in the pipeline into a structured 500
// without leaking internals to the submitter.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("request panicked")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(errorResponse{
					Success: false,
					Error:   errorBody{Code: codeInternal, Message: "unexpected error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(resetAt time.Time) string {
	secs := int(time.Until(resetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
