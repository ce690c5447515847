package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the status codes callers usually branch on.
var (
	// ErrUnauthorized is returned when the request needs a logged in user.
	ErrUnauthorized = errors.New("practice: unauthorized")
	// ErrForbidden is returned for invalid tokens and rule denials.
	ErrForbidden = errors.New("practice: forbidden")
	// ErrNotFound is returned when a collection or record does not exist.
	ErrNotFound = errors.New("practice: not found")
	// ErrConflict is returned when a registration reuses an identity.
	ErrConflict = errors.New("practice: conflict")
)

// APIError is the {code, message} body the server sends with every error.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("practice: %s (status %d)", e.Message, e.StatusCode)
}

// Is maps the status code onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}
