package books

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the discovery and retrieval pipelines. Handlers map
// each to a distinct client-visible status; operator detail stays in logs.
var (
	// ErrInvalidInput marks an empty query or malformed URL, rejected
	// before any I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLinkNotFound means the resolver exhausted every anchor pattern
	// without locating a downloadable link.
	ErrLinkNotFound = errors.New("no downloadable link located")

	// ErrSourceUnavailable covers network, DNS, and TLS failures reaching
	// an external source after all fallbacks were exhausted.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceTimeout marks a per-call deadline exceeded.
	ErrSourceTimeout = errors.New("source timed out")

	// ErrSizeLimitExceeded marks a download that crossed the byte ceiling
	// mid-stream.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrStreamInterrupted marks a transport failure after response
	// headers were already delivered to the caller.
	ErrStreamInterrupted = errors.New("stream interrupted")
)

// RateLimitedError is returned when the request governor denies admission.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds the wait up to whole seconds for the caller.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// UpstreamHTTPError is a non-success status from the final file fetch.
type UpstreamHTTPError struct {
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
