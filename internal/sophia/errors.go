package sophia

import (
	"fmt"
	"net/http"
)

// AuthenticationError indicates that the upstream login call failed or
// returned an unusable token. It is fatal to the current request; a
// previously issued token (if still valid) remains in use for others.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("sophia authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Status implements the HTTPStatuser convention used by the HTTP handlers.
func (e *AuthenticationError) Status() (int, string) {
	return http.StatusBadGateway, "authentication with the school system failed"
}

// Error indicates a failed upstream data call.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sophia request %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sophia request %s failed with status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status implements the HTTPStatuser convention used by the HTTP handlers.
func (e *Error) Status() (int, string) {
	return http.StatusBadGateway, "the school system could not be reached"
}
