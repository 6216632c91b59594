package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNetwork            = fmt.Errorf("network error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrInvalidModel       = fmt.Errorf("invalid model")

	// Pipeline errors
	ErrBatchSkipped = fmt.Errorf("batch skipped")
	ErrCorruptStore = fmt.Errorf("corrupt store file")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// RateLimitError reports an HTTP 429 from a provider along with the wait it asked for.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited: retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Service)
}

// IsFatal reports whether err must abort the run: bad credentials or configuration.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsRetryable reports whether err is transient: a rate limit, a network failure, or a 5xx.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) || errors.Is(err, ErrInvalidModel) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
