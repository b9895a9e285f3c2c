package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/webhook-router/internal/connector"
	"github.com/example/webhook-router/internal/submission"
)

var (
	outcomeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Per-destination dispatch outcomes",
	}, []string{"destination", "result"})
	dispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Time spent delivering to one destination, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"destination"})
)

// Meta carries the connector identity handlers may want for rendering
// (email subjects, chat titles).
type Meta struct {
	ConnectorID   string
	ConnectorName string
}

// Handler delivers one payload to one destination. Implementations
// classify failures: ConfigError and NotImplementedError abort, anything
// else is retried by the coordinator's policy.
type Handler interface {
	Dispatch(ctx context.Context, cfg connector.DestinationConfig, payload map[string]any, meta Meta) error
}

type Registry struct {
	handlers map[connector.DestinationType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[connector.DestinationType]Handler)}
}

func (r *Registry) Register(t connector.DestinationType, h Handler) {
	r.handlers[t] = h
}

func (r *Registry) Lookup(t connector.DestinationType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

type Coordinator struct {
	registry *Registry
	retry    RetryPolicy
	tracer   trace.Tracer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCoordinator(registry *Registry, retry RetryPolicy, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		retry:    retry,
		tracer:   otel.Tracer("dispatch"),
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch fans the payload out to every enabled destination. Failure
// domains are isolated: one destination's error never stops the rest.
// Disabled configs and unregistered types produce no outcome entry.
func (c *Coordinator) Dispatch(ctx context.Context, configs []connector.DestinationConfig, payload map[string]any, meta Meta) map[string]submission.Outcome {
	outcomes := make(map[string]submission.Outcome, len(configs))
	for _, cfg := range configs {
		handler, ok := c.registry.Lookup(cfg.Type)
		if !ok {
			c.logger.Warn().
				Str("connector_id", meta.ConnectorID).
				Str("destination", string(cfg.Type)).
				Msg("skipping unknown destination type")
			continue
		}
		if !cfg.Enabled {
			continue
		}
		outcomes[string(cfg.Type)] = c.deliver(ctx, handler, cfg, payload, meta)
	}
	return outcomes
}

func (c *Coordinator) deliver(ctx context.Context, handler Handler, cfg connector.DestinationConfig, payload map[string]any, meta Meta) submission.Outcome {
	ctx, span := c.tracer.Start(ctx, "deliver",
		trace.WithAttributes(attribute.String("destination.type", string(cfg.Type))))
	defer span.End()

	start := c.now()
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return handler.Dispatch(ctx, cfg, payload, meta)
	})
	dispatchLatency.WithLabelValues(string(cfg.Type)).Observe(c.now().Sub(start).Seconds())

	if err != nil {
		span.RecordError(err)
		outcomeCounter.WithLabelValues(string(cfg.Type), "failure").Inc()
		c.logger.Warn().Err(err).
			Str("connector_id", meta.ConnectorID).
			Str("destination", string(cfg.Type)).
			Msg("destination delivery failed")
		return submission.Failed(err, c.now().UTC())
	}

	outcomeCounter.WithLabelValues(string(cfg.Type), "success").Inc()
	return submission.Succeeded()
}
