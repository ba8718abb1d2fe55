package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Upstream fetch errors.
// Use errors.Is to tell them apart; a non-2xx response is additionally
// available as *StatusError through errors.As.
var (
	// ErrUpstreamUnavailable is returned when the upstream cannot be reached,
	// the request times out, or the body cannot be read.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamBadStatus is returned when the upstream answers with a
	// non-2xx status after all retry attempts.
	ErrUpstreamBadStatus = errors.New("upstream returned bad status")

	// ErrParse is returned when the body cannot be parsed. Parse errors are
	// never retried.
	ErrParse = errors.New("cannot parse upstream response")

	// ErrInvalidURL is returned by New when an upstream URL is not http(s).
	ErrInvalidURL = errors.New("invalid upstream url: must be http or https")
)

// StatusError carries the HTTP status of a failed upstream response.
type StatusError struct {
	// URL is the requested upstream URL.
	URL string

	// StatusCode is the final HTTP status code received.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d (%s)", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap makes errors.Is(err, ErrUpstreamBadStatus) true.
func (e *StatusError) Unwrap() error {
	return ErrUpstreamBadStatus
}

// Retryable reports whether the status belongs to the transient class
// (429 and 5xx other than 501) that the client retries.
func (e *StatusError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500 && e.StatusCode != http.StatusNotImplemented
}
