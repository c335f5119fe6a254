package kurir

import (
	"errors"
	"fmt"
	"time"
)

// Error type identifiers carried by DispatchError.
const (
	ErrorTypeTransport     = "Transport"
	ErrorTypeRateLimitWait = "RateLimitWait"
	ErrorTypeValidation    = "Validation"
	ErrorTypeCanceled      = "Canceled"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrTransport is returned when both the pooled and direct send failed.
	ErrTransport = errors.New("kurir: transport failed")

	// ErrRateLimitWaitExceeded is returned when the computed rate-limit wait
	// exceeds the request's MaxWait bound.
	ErrRateLimitWaitExceeded = errors.New("kurir: rate limit wait exceeds maximum")

	// ErrPoolExhausted marks an acquire that found no free session. It never
	// escapes Dispatch; the dispatcher falls back to a direct send.
	ErrPoolExhausted = errors.New("kurir: connection pool exhausted")

	// ErrCacheUnavailable marks a degraded cache. It never escapes Dispatch;
	// cache failures pass through as misses.
	ErrCacheUnavailable = errors.New("kurir: cache unavailable")
)

// DispatchError is the user-visible error from Dispatch. Pool and cache
// failures are absorbed internally and never produce one; only transport
// failure, an exceeded wait bound, cancellation and invalid input surface.
type DispatchError struct {
	Type      string
	Message   string
	Cause     error
	RequestID string
	Method    string
	URL       string
	Host      string
	// Path records which send path produced the failure: "pooled", "direct"
	// or "" when no send was attempted.
	Path      string
	Timestamp time.Time
	Duration  time.Duration
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches both DispatchError types and the package sentinels, so
// errors.Is(err, ErrTransport) works on a wrapped transport failure.
func (e *DispatchError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrTransport:
		return e.Type == ErrorTypeTransport
	case ErrRateLimitWaitExceeded:
		return e.Type == ErrorTypeRateLimitWait
	}
	if targetErr, ok := target.(*DispatchError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsTransient reports whether an error represents a transient failure worth a
// caller-level retry. Dispatch performs no retries itself; its direct-send
// fallback is side-effect free, which makes caller retries safe.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimitWaitExceeded) {
		return true
	}
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Type == ErrorTypeTransport || dispatchErr.Type == ErrorTypeRateLimitWait
	}
	return false
}
