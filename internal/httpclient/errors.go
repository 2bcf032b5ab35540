package httpclient

import (
	"errors"
	"fmt"
)

// ErrUnauthorized reports that the analytics service rejected the attached
// token. Callers invalidate the cached token and may retry once with a fresh
// one; it is never part of the transient retry budget.
var ErrUnauthorized = errors.New("analytics service rejected token")

// ErrAuthExpired is terminal: a freshly exchanged token was rejected again
// after the single forced refresh. It signals a revoked admin credential or a
// server-side problem and must surface to the caller rather than loop.
var ErrAuthExpired = errors.New("analytics service rejected freshly refreshed token")

// ErrUpstreamUnavailable is terminal: the transient retry budget was
// exhausted on network failures or 5xx responses.
var ErrUpstreamUnavailable = errors.New("analytics service unavailable")

// ErrNotFound reports a 404 from the analytics service.
var ErrNotFound = errors.New("analytics resource not found")

// StatusError carries a non-retryable 4xx response that is none of the
// sentinel conditions above.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics service returned %d: %s", e.Code, e.Body)
}
