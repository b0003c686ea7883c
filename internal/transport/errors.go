package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrForbidden marks deliveries the platform rejected because the bot lost
// access: kicked from the chat, blocked by the user, or never started.
// These are permanent for the current run; callers skip instead of retrying.
var ErrForbidden = errors.New("transport: forbidden")

// RateLimitedError reports platform flood control with the server-specified
// wait. Callers may retry after RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("transport: rate limited, retry after %s", e.RetryAfter)
}

// IsForbidden reports whether err is (or wraps) ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// AsRateLimited extracts a RateLimitedError from err, if present.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
