package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const (
	maxPayloadBytes   = 100 * 1024
	maxFieldCount     = 50
	maxFieldNameLen   = 255
	maxStringValueLen = 10000
	maxSafeInteger    = float64(1<<53 - 1)
)

// ValidationError names the failing rule and, where it applies, the
// offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
	}
	return e.Reason
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidatePayload checks a raw submission body and returns the decoded
// field mapping. Pure: same bytes in, same verdict out. Checks run in a
// fixed order and stop at the first failure.
func ValidatePayload(raw []byte) (map[string]any, *ValidationError) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if len(raw) > maxPayloadBytes {
			return nil, invalid("", fmt.Sprintf("payload exceeds %d bytes", maxPayloadBytes))
		}
		return nil, invalid("", "body must be a JSON object")
	}
	payload, ok := decoded.(map[string]any)
	if !ok || payload == nil {
		return nil, invalid("", "body must be a JSON object, not an array or scalar")
	}

	if len(raw) > maxPayloadBytes {
		return nil, invalid("", fmt.Sprintf("payload exceeds %d bytes", maxPayloadBytes))
	}
	if len(payload) > maxFieldCount {
		return nil, invalid("", fmt.Sprintf("payload has more than %d fields", maxFieldCount))
	}

	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := payload[name]
		if name == "" {
			return nil, invalid("", "field names must not be empty")
		}
		if len(name) > maxFieldNameLen {
			return nil, invalid(name, fmt.Sprintf("field name exceeds %d characters", maxFieldNameLen))
		}
		if err := validateValue(name, value); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func validateValue(name string, value any) *ValidationError {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return nil
	case string:
		if len(v) > maxStringValueLen {
			return invalid(name, fmt.Sprintf("string value exceeds %d characters", maxStringValueLen))
		}
		return nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(name, "number value must be finite")
		}
		if math.Abs(v) > maxSafeInteger {
			return invalid(name, "number value is outside the safe integer range")
		}
		return nil
	default:
		return invalid(name, "value must be a string, number, or boolean")
	}
}
