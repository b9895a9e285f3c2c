package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/webhook-router/internal/connector"
)

// ConfigError marks a destination as misconfigured (missing field, bad
// address, resource gone, permission denied). Never retried.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func Configf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// NotImplementedError is returned by destination types the router knows
// about but cannot deliver to yet. Recorded as a visible failure so the
// connector owner is never shown a false success.
type NotImplementedError struct {
	Type connector.DestinationType
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s destination is not implemented", e.Type)
}

// RetryAfterError is a transient failure where the downstream named its
// own backoff duration; the retry policy honors it for the next wait.
type RetryAfterError struct {
	Err   error
	After time.Duration
}

func (e *RetryAfterError) Error() string { return e.Err.Error() }

func (e *RetryAfterError) Unwrap() error { return e.Err }

// isFatal reports whether the error must not be retried.
func isFatal(err error) bool {
	var (
		configErr    *ConfigError
		notImplErr   *NotImplementedError
		permanentErr *backoff.PermanentError
	)
	return errors.As(err, &configErr) || errors.As(err, &notImplErr) || errors.As(err, &permanentErr)
}

func retryAfterHint(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.After > 0 {
		return ra.After, true
	}
	return 0, false
}
