package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExhausted is returned when a call is still rate limited after
// the configured number of retries.
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// RateLimitError reports an HTTP 429 style rejection. RetryAfter is zero when
// the store gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
