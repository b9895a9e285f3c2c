package connector

import (
	"reflect"
	"testing"
)

func TestDecodeDestinationsUnwrapsLegacyNesting(t *testing.T) {
	flat := []byte(`[{"type":"email","enabled":true,"settings":{"recipient":"a@b.com"}},{"type":"chat","enabled":false}]`)
	nested := []byte(`[[{"type":"email","enabled":true,"settings":{"recipient":"a@b.com"}},{"type":"chat","enabled":false}]]`)

	fromFlat, err := DecodeDestinations(flat)
	if err != nil {
		t.Fatalf("decode flat: %v", err)
	}
	fromNested, err := DecodeDestinations(nested)
	if err != nil {
		t.Fatalf("decode nested: %v", err)
	}
	if !reflect.DeepEqual(fromFlat, fromNested) {
		t.Fatalf("flat and nested forms decoded differently:\nflat:   %#v\nnested: %#v", fromFlat, fromNested)
	}
	if len(fromFlat) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(fromFlat))
	}
	if fromFlat[0].Type != DestinationEmail || !fromFlat[0].Enabled {
		t.Fatalf("unexpected first config: %#v", fromFlat[0])
	}
}

func TestDecodeDestinationsCanonicalizesKeys(t *testing.T) {
	raw := []byte(`[{"type":"sheets","enabled":true,"settings":{"spreadsheetId":"sheet-1","sheetName":"Responses"}}]`)

	configs, err := DecodeDestinations(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := configs[0]
	if got := cfg.StringSetting("spreadsheet_id"); got != "sheet-1" {
		t.Fatalf("spreadsheet_id = %q", got)
	}
	if got := cfg.StringSetting("sheet_name"); got != "Responses" {
		t.Fatalf("sheet_name = %q", got)
	}
	if _, exists := cfg.Settings["sheetName"]; exists {
		t.Fatal("camelCase key survived canonicalization")
	}
}

func TestSnakeCaseFoldsCapitalRuns(t *testing.T) {
	cases := map[string]string{
		"webhookURL":     "webhook_url",
		"webhookUrl":     "webhook_url",
		"APIKey":         "api_key",
		"sheetName":      "sheet_name",
		"spreadsheet_id": "spreadsheet_id",
		"webhook_URL":    "webhook_url",
	}
	for input, want := range cases {
		if got := snakeCase(input); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDecodeDestinationsAliasesCapitalRuns(t *testing.T) {
	raw := []byte(`[{"type":"chat","enabled":true,"settings":{"webhookURL":"https://hooks.slack.com/services/T/B/x"}}]`)

	configs, err := DecodeDestinations(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := configs[0].StringSetting("webhook_url"); got != "https://hooks.slack.com/services/T/B/x" {
		t.Fatalf("webhook_url = %q", got)
	}
}

func TestDecodeDestinationsPrefersSnakeCaseOnConflict(t *testing.T) {
	raw := []byte(`[{"type":"email","enabled":true,"settings":{"recipient_email":"snake@b.com","recipientEmail":"camel@b.com"}}]`)

	configs, err := DecodeDestinations(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := configs[0].StringSetting("recipient_email"); got != "snake@b.com" {
		t.Fatalf("recipient_email = %q, want snake_case value to win", got)
	}
}

func TestDecodeDestinationsEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("[]")} {
		configs, err := DecodeDestinations(raw)
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if len(configs) != 0 {
			t.Fatalf("decode %q: expected no configs, got %d", raw, len(configs))
		}
	}
}
