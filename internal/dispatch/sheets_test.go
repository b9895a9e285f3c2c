package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/example/webhook-router/internal/connector"
)

type fakeSheets struct {
	headers []string
	rows    [][]any
}

func (f *fakeSheets) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			var values [][]any
			if len(f.headers) > 0 {
				row := make([]any, len(f.headers))
				for i, h := range f.headers {
					row[i] = h
				}
				values = [][]any{row}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
		case r.Method == http.MethodPut:
			var body struct {
				Values [][]any `json:"values"`
			}
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode header write: %v", err)
			}
			f.headers = f.headers[:0]
			for _, cell := range body.Values[0] {
				f.headers = append(f.headers, cell.(string))
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, ":append"):
			var body struct {
				Values [][]any `json:"values"`
			}
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode append: %v", err)
			}
			f.rows = append(f.rows, body.Values[0])
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
}

func sheetsConfig() connector.DestinationConfig {
	return connector.DestinationConfig{
		Type:    connector.DestinationSheets,
		Enabled: true,
		Settings: map[string]any{
			"spreadsheet_id": "sheet-1",
			"sheet_name":     "Responses",
		},
	}
}

func TestSheetsHandlerCreatesHeadersOnFirstWrite(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	h := &SheetsHandler{Endpoint: srv.URL, Token: "tok", Client: srv.Client()}
	payload := map[string]any{"name": "Ada", "email": "ada@example.com"}

	if err := h.Dispatch(context.Background(), sheetsConfig(), payload, Meta{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if !reflect.DeepEqual(fake.headers, []string{"email", "name"}) {
		t.Fatalf("headers = %v", fake.headers)
	}
	if len(fake.rows) != 1 {
		t.Fatalf("rows = %d", len(fake.rows))
	}
	if !reflect.DeepEqual(fake.rows[0], []any{"ada@example.com", "Ada"}) {
		t.Fatalf("row = %v", fake.rows[0])
	}
}

func TestSheetsHandlerReconcilesColumnOrder(t *testing.T) {
	fake := &fakeSheets{headers: []string{"name", "email"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	h := &SheetsHandler{Endpoint: srv.URL, Token: "tok", Client: srv.Client()}
	payload := map[string]any{"email": "ada@example.com", "name": "Ada", "phone": "555"}

	if err := h.Dispatch(context.Background(), sheetsConfig(), payload, Meta{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// Existing columns keep their order; the unseen field extends them.
	if !reflect.DeepEqual(fake.headers, []string{"name", "email", "phone"}) {
		t.Fatalf("headers = %v", fake.headers)
	}
	if !reflect.DeepEqual(fake.rows[0], []any{"Ada", "ada@example.com", "555"}) {
		t.Fatalf("row = %v", fake.rows[0])
	}
}

func TestSheetsHandlerFillsMissingFields(t *testing.T) {
	fake := &fakeSheets{headers: []string{"name", "email", "phone"}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	h := &SheetsHandler{Endpoint: srv.URL, Token: "tok", Client: srv.Client()}
	payload := map[string]any{"name": "Ada"}

	if err := h.Dispatch(context.Background(), sheetsConfig(), payload, Meta{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !reflect.DeepEqual(fake.rows[0], []any{"Ada", "", ""}) {
		t.Fatalf("row = %v", fake.rows[0])
	}
}

func TestSheetsHandlerMissingConfig(t *testing.T) {
	h := &SheetsHandler{Endpoint: "http://unused"}
	cfg := connector.DestinationConfig{Type: connector.DestinationSheets, Enabled: true, Settings: map[string]any{}}

	err := h.Dispatch(context.Background(), cfg, nil, Meta{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestSheetsHandlerPermissionDeniedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := &SheetsHandler{Endpoint: srv.URL, Token: "tok", Client: srv.Client()}
	err := h.Dispatch(context.Background(), sheetsConfig(), map[string]any{"name": "Ada"}, Meta{})
	if !isFatal(err) {
		t.Fatalf("403 should be fatal, got %v", err)
	}
}
