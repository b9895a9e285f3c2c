package ingest

import (
	"context"

	"github.com/example/webhook-router/internal/connector"
	"github.com/example/webhook-router/internal/dispatch"
	"github.com/example/webhook-router/internal/events"
	"github.com/example/webhook-router/internal/submission"
)

type ConnectorStore interface {
	GetByWebhookID(ctx context.Context, webhookID string) (connector.Connector, error)
}

type SubmissionStore interface {
	Insert(ctx context.Context, connectorID string, payload map[string]any) (string, error)
	UpdateOutcomes(ctx context.Context, id string, outcomes map[string]submission.Outcome) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, configs []connector.DestinationConfig, payload map[string]any, meta dispatch.Meta) map[string]submission.Outcome
}

type EventPublisher interface {
	SubmissionProcessed(ctx context.Context, event events.SubmissionProcessed) error
}
