package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks a 401 response. The client never retries it;
// minting a new credential is the caller's decision.
var ErrUnauthorized = errors.New("unauthorized")

// errRateLimited marks a single 429 response inside the retry loop.
var errRateLimited = errors.New("rate limited")

// RateLimitError reports an exhausted 429 retry budget.
type RateLimitError struct {
	Endpoint string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s after %d attempts", e.Endpoint, e.Attempts)
}

// RequestError is any other non-2xx response. Body is truncated.
type RequestError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed with %d: %s", e.Endpoint, e.Status, e.Body)
}
