package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/webhook-router/internal/connector"
)

// ChatHandler posts submissions to a Slack-style incoming webhook.
// Required setting: webhook_url, which must point at AllowedHost so a
// misconfigured connector cannot be used to spray arbitrary URLs.
type ChatHandler struct {
	AllowedHost string
	Client      *http.Client
}

func (h *ChatHandler) Dispatch(ctx context.Context, cfg connector.DestinationConfig, payload map[string]any, meta Meta) error {
	rawURL := cfg.StringSetting("webhook_url")
	if rawURL == "" {
		return Configf("chat destination missing webhook_url")
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme != "https" {
		return Configf("chat destination webhook_url %q is not a valid https url", rawURL)
	}
	if !hostAllowed(target.Hostname(), h.AllowedHost) {
		return Configf("chat destination webhook_url host %q is not %s", target.Hostname(), h.AllowedHost)
	}

	body, err := json.Marshal(map[string]string{
		"text": renderChatText(meta.ConnectorName, payload),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client().Do(req)
	if err != nil {
		return fmt.Errorf("chat send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus("chat provider", resp)
}

func (h *ChatHandler) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func hostAllowed(host, allowed string) bool {
	return host == allowed || strings.HasSuffix(host, "."+allowed)
}

func renderChatText(connectorName string, payload map[string]any) string {
	var b strings.Builder
	b.WriteString("*New submission for ")
	b.WriteString(escapeChatText(connectorName))
	b.WriteString("*\n")
	for _, key := range sortedKeys(payload) {
		b.WriteString(escapeChatText(key))
		b.WriteString(": ")
		b.WriteString(escapeChatText(formatValue(payload[key])))
		b.WriteString("\n")
	}
	return b.String()
}

// escapeChatText applies the provider's markup escaping rules (&, <, >).
func escapeChatText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
