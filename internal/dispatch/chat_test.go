package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/example/webhook-router/internal/connector"
)

func chatConfig(url string) connector.DestinationConfig {
	return connector.DestinationConfig{
		Type:     connector.DestinationChat,
		Enabled:  true,
		Settings: map[string]any{"webhook_url": url},
	}
}

func TestChatHandlerRejectsForeignHosts(t *testing.T) {
	h := &ChatHandler{AllowedHost: "hooks.slack.com"}

	tests := []string{
		"https://evil.example.com/services/T/B/x",
		"http://hooks.slack.com/services/T/B/x", // https required
		"https://hooks.slack.com.evil.example.com/x",
		"not a url at all ://",
	}
	for _, target := range tests {
		err := h.Dispatch(context.Background(), chatConfig(target), nil, Meta{})
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("url %q: expected ConfigError, got %v", target, err)
		}
	}
}

func TestChatHandlerMissingURL(t *testing.T) {
	h := &ChatHandler{AllowedHost: "hooks.slack.com"}
	err := h.Dispatch(context.Background(), connector.DestinationConfig{Type: connector.DestinationChat, Enabled: true}, nil, Meta{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestChatHandlerEscapesText(t *testing.T) {
	payload := map[string]any{"comment": "a <b> & c"}
	text := renderChatText("Contact", payload)
	if strings.Contains(text, "<b>") {
		t.Fatal("markup not escaped")
	}
	if !strings.Contains(text, "a &lt;b&gt; &amp; c") {
		t.Fatalf("unexpected rendering: %q", text)
	}
}

func TestChatHandlerPostsText(t *testing.T) {
	var sent map[string]string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &sent); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	h := &ChatHandler{AllowedHost: target.Hostname(), Client: srv.Client()}

	err := h.Dispatch(context.Background(), chatConfig(srv.URL+"/services/T/B/x"), map[string]any{"name": "Ada"}, Meta{ConnectorName: "Contact"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(sent["text"], "name: Ada") {
		t.Fatalf("text = %q", sent["text"])
	}
}

func TestChatHandlerGoneChannelIsFatal(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	h := &ChatHandler{AllowedHost: target.Hostname(), Client: srv.Client()}

	err := h.Dispatch(context.Background(), chatConfig(srv.URL), nil, Meta{})
	if !isFatal(err) {
		t.Fatalf("404 from provider should be fatal, got %v", err)
	}
}
