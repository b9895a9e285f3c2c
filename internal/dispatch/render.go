package dispatch

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// formatValue renders a validated scalar payload value for display or a
// spreadsheet cell. Payloads only ever hold strings, numbers, booleans,
// or null after validation.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// classifyStatus maps a downstream HTTP status to the retry taxonomy:
// auth and not-found problems are configuration errors, 429 carries the
// downstream's own backoff hint, 5xx is transient.
func classifyStatus(provider string, resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryAfterError{
			Err:   fmt.Errorf("%s rate limited: %s", provider, resp.Status),
			After: parseRetryAfter(resp),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Configf("%s permission denied: %s", provider, resp.Status)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Configf("%s target not found: %s", provider, resp.Status)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s temporary error: %s", provider, resp.Status)
	default:
		return Configf("%s rejected request: %s", provider, resp.Status)
	}
}

func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
