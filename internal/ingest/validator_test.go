package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string
		wantErr   string
	}{
		{
			name: "valid scalars",
			raw:  `{"name":"Ada","age":36,"subscribed":true,"note":null}`,
		},
		{
			name:    "array body",
			raw:     `[{"name":"Ada"}]`,
			wantErr: "object",
		},
		{
			name:    "null body",
			raw:     `null`,
			wantErr: "object",
		},
		{
			name:    "scalar body",
			raw:     `"hello"`,
			wantErr: "object",
		},
		{
			name:      "nested object value",
			raw:       `{"name":"Ada","address":{"city":"London"}}`,
			wantField: "address",
			wantErr:   "string, number, or boolean",
		},
		{
			name:      "array value",
			raw:       `{"tags":["a","b"]}`,
			wantField: "tags",
			wantErr:   "string, number, or boolean",
		},
		{
			name:      "overlong string value",
			raw:       fmt.Sprintf(`{"bio":%q}`, strings.Repeat("x", 10001)),
			wantField: "bio",
			wantErr:   "10000",
		},
		{
			name:      "unsafe integer",
			raw:       `{"big":9007199254740993}`,
			wantField: "big",
			wantErr:   "safe integer",
		},
		{
			name:      "overlong field name",
			raw:       fmt.Sprintf(`{%q:"v"}`, strings.Repeat("k", 256)),
			wantField: strings.Repeat("k", 256),
			wantErr:   "255",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := ValidatePayload([]byte(tc.raw))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if payload == nil {
					t.Fatal("expected decoded payload")
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Reason, tc.wantErr) {
				t.Fatalf("reason %q does not mention %q", err.Reason, tc.wantErr)
			}
			if err.Field != tc.wantField {
				t.Fatalf("field = %q, want %q", err.Field, tc.wantField)
			}
		})
	}
}

func TestValidatePayloadSizeLimit(t *testing.T) {
	big := map[string]string{"blob": strings.Repeat("x", 101*1024)}
	raw, _ := json.Marshal(big)

	_, err := ValidatePayload(raw)
	if err == nil {
		t.Fatal("expected size error")
	}
	if !strings.Contains(err.Reason, "exceeds") || !strings.Contains(err.Reason, "bytes") {
		t.Fatalf("unexpected reason: %q", err.Reason)
	}
}

func TestValidatePayloadFieldCount(t *testing.T) {
	fields := make(map[string]string, 51)
	for i := 0; i < 51; i++ {
		fields[fmt.Sprintf("field_%d", i)] = "v"
	}
	raw, _ := json.Marshal(fields)

	_, err := ValidatePayload(raw)
	if err == nil {
		t.Fatal("expected field-count error")
	}
	if !strings.Contains(err.Reason, "50") {
		t.Fatalf("unexpected reason: %q", err.Reason)
	}
}

func TestValidatePayloadDeterministic(t *testing.T) {
	raw := []byte(`{"name":"Ada","email":"ada@example.com"}`)

	first, err1 := ValidatePayload(raw)
	second, err2 := ValidatePayload(raw)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if len(first) != len(second) {
		t.Fatalf("verdicts differ between runs")
	}
}
