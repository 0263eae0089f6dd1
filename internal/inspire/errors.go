package inspire

import (
	"errors"
	"fmt"
)

// Common errors returned by the INSPIRE client.
var (
	// ErrNotFound indicates the identifier has no INSPIRE record. This is a
	// legitimate terminal outcome, not a transient failure.
	ErrNotFound = errors.New("not found on INSPIRE")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("INSPIRE rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with INSPIRE")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from INSPIRE")
)

// APIError represents an HTTP-level error from the INSPIRE API.
type APIError struct {
	StatusCode int
	Identifier string // Identifier being resolved, for context
}

func (e *APIError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("INSPIRE API error (status %d) resolving %s", e.StatusCode, e.Identifier)
	}
	return fmt.Sprintf("INSPIRE API error (status %d)", e.StatusCode)
}

// IsNotFound returns true if the error indicates the identifier has no record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsServiceError returns true for transient lookup failures that should be
// reported per identifier without aborting the run. NotFound is excluded.
func IsServiceError(err error) bool {
	return err != nil && !IsNotFound(err)
}
