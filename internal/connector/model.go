package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

type DestinationType string

const (
	DestinationEmail   DestinationType = "email"
	DestinationChat    DestinationType = "chat"
	DestinationSheets  DestinationType = "sheets"
	DestinationSMS     DestinationType = "sms"
	DestinationWebhook DestinationType = "webhook"
)

// DestinationConfig is one sink entry on a connector. Settings keys are
// canonical snake_case after decoding; use StringSetting to read them.
type DestinationConfig struct {
	Type     DestinationType `json:"type"`
	Enabled  bool            `json:"enabled"`
	Settings map[string]any  `json:"settings,omitempty"`
}

// StringSetting returns the named setting as a string, or "" when absent
// or not a string. Keys are expected in snake_case.
func (c DestinationConfig) StringSetting(key string) string {
	v, ok := c.Settings[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

type Connector struct {
	ID           string
	WebhookID    string
	OwnerID      string
	Name         string
	Description  string
	Active       bool
	Destinations []DestinationConfig
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DecodeDestinations parses the stored destination list. Older dashboard
// builds wrote the list double-nested (an array holding a single array of
// configs); one level is unwrapped when the first element is itself an array.
func DecodeDestinations(raw []byte) ([]DestinationConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode destinations: %w", err)
	}
	if len(elems) > 0 && startsWithArray(elems[0]) {
		if err := json.Unmarshal(elems[0], &elems); err != nil {
			return nil, fmt.Errorf("decode nested destinations: %w", err)
		}
	}

	configs := make([]DestinationConfig, 0, len(elems))
	for i, elem := range elems {
		var cfg DestinationConfig
		if err := json.Unmarshal(elem, &cfg); err != nil {
			return nil, fmt.Errorf("decode destination %d: %w", i, err)
		}
		cfg.Settings = canonicalSettings(cfg.Settings)
		configs = append(configs, cfg)
	}
	return configs, nil
}

func EncodeDestinations(configs []DestinationConfig) ([]byte, error) {
	if configs == nil {
		configs = []DestinationConfig{}
	}
	return json.Marshal(configs)
}

func startsWithArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// canonicalSettings rewrites camelCase setting keys to snake_case so
// handlers only ever see one shape (sheetName and sheet_name are the same
// setting). snake_case wins when both spellings are present.
func canonicalSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		canonical := snakeCase(key)
		if canonical != key {
			if _, exists := settings[canonical]; exists {
				continue
			}
		}
		out[canonical] = value
	}
	return out
}

// snakeCase lowercases camelCase keys, treating a run of capitals as one
// segment: webhookURL and webhookUrl both become webhook_url.
func snakeCase(key string) string {
	runes := []rune(key)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		boundary := i > 0 && runes[i-1] != '_' &&
			(!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1])))
		if boundary {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
