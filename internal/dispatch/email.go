package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/webhook-router/internal/connector"
)

// EmailHandler delivers submissions as HTML email through a
// SendGrid-style send API. Required settings: recipient, sender.
type EmailHandler struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func (h *EmailHandler) Dispatch(ctx context.Context, cfg connector.DestinationConfig, payload map[string]any, meta Meta) error {
	recipient := cfg.StringSetting("recipient")
	if recipient == "" {
		return Configf("email destination missing recipient")
	}
	sender := cfg.StringSetting("sender")
	if sender == "" {
		return Configf("email destination missing sender")
	}
	if !strings.Contains(recipient, "@") {
		return Configf("email destination recipient %q is not an address", recipient)
	}
	subject := cfg.StringSetting("subject")
	if subject == "" {
		subject = "New submission: " + meta.ConnectorName
	}

	body, err := json.Marshal(map[string]any{
		"personalizations": []any{
			map[string]any{"to": []any{map[string]any{"email": recipient}}},
		},
		"from":    map[string]any{"email": sender},
		"subject": subject,
		"content": []any{
			map[string]any{"type": "text/html", "value": renderEmailHTML(meta.ConnectorName, payload)},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint+"/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.APIKey)

	resp, err := h.client().Do(req)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus("email provider", resp)
}

func (h *EmailHandler) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// renderEmailHTML builds the submission table. Every payload key and
// value passes through html escaping; submitters control both.
func renderEmailHTML(connectorName string, payload map[string]any) string {
	var b strings.Builder
	b.WriteString("<h2>New submission for ")
	b.WriteString(html.EscapeString(connectorName))
	b.WriteString("</h2><table>")
	for _, key := range sortedKeys(payload) {
		b.WriteString("<tr><td><strong>")
		b.WriteString(html.EscapeString(key))
		b.WriteString("</strong></td><td>")
		b.WriteString(html.EscapeString(formatValue(payload[key])))
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
