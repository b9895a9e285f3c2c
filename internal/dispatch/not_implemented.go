package dispatch

import (
	"context"

	"github.com/example/webhook-router/internal/connector"
)

// NotImplementedHandler stands in for destination types that are
// configured in the dashboard but have no delivery path yet (sms,
// generic webhook forward). Failing loudly keeps the outcome honest.
type NotImplementedHandler struct {
	Type connector.DestinationType
}

func (h *NotImplementedHandler) Dispatch(ctx context.Context, cfg connector.DestinationConfig, payload map[string]any, meta Meta) error {
	return &NotImplementedError{Type: h.Type}
}
