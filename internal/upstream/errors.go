package upstream

import (
	"fmt"
	"time"
)

// NotFoundError reports a market identifier absent from the current
// listing. It is a domain-level miss, not an acquisition failure.
type NotFoundError struct {
	MarketID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("market %s not found", e.MarketID)
}

// TimeoutError reports a single endpoint-variant attempt exceeding its
// deadline. The client falls back to the next variant; a TimeoutError
// only surfaces to callers as the last cause of an UnavailableError.
type TimeoutError struct {
	Endpoint string
	Path     string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request to %s timed out after %s", e.Endpoint, e.Path, e.Timeout)
}

// UpstreamError reports a meaningful non-success status other than
// "not found". It is fatal: no further variants are attempted.
type UpstreamError struct {
	Endpoint   string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request to %s failed with status %d", e.Endpoint, e.Path, e.StatusCode)
}

// FormatError reports a response that parsed at the transport level
// but failed shape validation. Treated as fatal, like UpstreamError.
type FormatError struct {
	Endpoint string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s response malformed: %s", e.Endpoint, e.Reason)
}

// UnavailableError reports that every configured endpoint variant was
// exhausted without a success, carrying the last observed cause.
type UnavailableError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *UnavailableError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s unavailable after %d attempts: %v", e.Endpoint, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s unavailable after %d attempts", e.Endpoint, e.Attempts)
}

func (e *UnavailableError) Unwrap() error { return e.Last }
