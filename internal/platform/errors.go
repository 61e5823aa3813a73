package platform

import (
	"errors"
	"fmt"
	"time"
)

// Platform error codes carried on APIError
const (
	codeRateLimited  = 4
	codeWindowClosed = 10
)

// ErrWindowClosed is returned by SendDirectMessage when the platform
// only permits directed messages to users who have messaged the
// account first. It is an alternate outcome, not a retriable failure.
var ErrWindowClosed = errors.New("messaging window closed: recipient must message the account first")

// APIError is a typed platform error with a retriable classification
type APIError struct {
	Code      int
	Message   string
	Retriable bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform error (code %d): %s", e.Code, e.Message)
}

// RateLimitError signals that the platform asked us to back off. It
// pauses the process-wide rate gate rather than failing the comment.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("platform rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetriable reports whether an error is a transient platform failure
// worth retrying with backoff. Rate limits and the closed messaging
// window have their own handling and are not retriable failures.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWindowClosed) {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retriable
	}
	// Unclassified errors (network timeouts etc.) are assumed transient
	return true
}
