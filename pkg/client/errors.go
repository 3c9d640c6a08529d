package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned internally for HTTP 404. Public read operations
// translate it into an empty result.
var ErrNotFound = errors.New("not found")

// ErrBadVersion is returned when svc/report carries a version that is not
// semver, as development builds do.
var ErrBadVersion = errors.New("unparsable daemon version")

// ErrUnauthorized is matched by every AuthError.
var ErrUnauthorized = errors.New("forbidden, api key could be wrong")

// AuthError is returned when the daemon answers 403 on any endpoint.
type AuthError struct {
	Endpoint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, ErrUnauthorized)
}

func (e *AuthError) Unwrap() error {
	return ErrUnauthorized
}

// AsAuth checks if an error is an AuthError and returns it.
func AsAuth(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// APIError is returned for HTTP 500 and every other unexpected status.
type APIError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Endpoint, e.Status, e.Body)
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
