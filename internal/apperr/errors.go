// Package apperr defines the service error taxonomy and the single place
// where errors are turned into HTTP responses.
package apperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Kind classifies a service error. Each kind maps to exactly one HTTP status.
type Kind int

const (
	// KindRequest indicates malformed input or a wrong method for the endpoint.
	KindRequest Kind = iota + 1
	// KindNotFound indicates a missing collection or record.
	KindNotFound
	// KindConflict indicates a duplicate unique identity.
	KindConflict
	// KindAuthorization indicates the action requires an authenticated user.
	KindAuthorization
	// KindCredential indicates an invalid token or a rule denial.
	KindCredential
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindCredential:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindRequest:
		return "Request error"
	case KindNotFound:
		return "Resource not found"
	case KindConflict:
		return "Resource conflict"
	case KindAuthorization:
		return "Unauthorized"
	case KindCredential:
		return "Forbidden"
	default:
		return "Service Error"
	}
}

// Sentinels for errors.Is matching against a kind.
var (
	ErrRequest       = &Error{Kind: KindRequest}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrCredential    = &Error{Kind: KindCredential}
)

// Error is a service error that is safe to show to the client.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.defaultMessage()
	}
	return e.Message
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Is reports kind equality so errors.Is(err, apperr.ErrNotFound) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, msg []string) *Error {
	e := &Error{Kind: kind}
	if len(msg) > 0 {
		e.Message = msg[0]
	}
	return e
}

// Request returns a 400 error. The message is optional.
func Request(msg ...string) *Error { return newError(KindRequest, msg) }

// NotFound returns a 404 error. The message is optional.
func NotFound(msg ...string) *Error { return newError(KindNotFound, msg) }

// Conflict returns a 409 error. The message is optional.
func Conflict(msg ...string) *Error { return newError(KindConflict, msg) }

// Authorization returns a 401 error. The message is optional.
func Authorization(msg ...string) *Error { return newError(KindAuthorization, msg) }

// Credential returns a 403 error. The message is optional.
func Credential(msg ...string) *Error { return newError(KindCredential, msg) }

// Response is the JSON body written for every error.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Write converts err into a {code, message} response. Errors that are not
// *Error are logged and reported as an opaque 500.
func Write(w http.ResponseWriter, logger *slog.Logger, err error, attrs ...any) {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("unhandled service error", append(attrs, "error", err)...)
		WriteStatus(w, http.StatusInternalServerError, "Server Error")
		return
	}
	WriteStatus(w, svcErr.Status(), svcErr.Error())
}

// WriteStatus writes a {code, message} JSON body with the given status.
func WriteStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response write errors are unrecoverable
	json.NewEncoder(w).Encode(Response{Code: status, Message: message})
}
