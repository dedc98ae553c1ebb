// Package errors defines the operational error taxonomy for the auth
// service. Handlers map these sentinels to HTTP status codes; anything
// not listed here is treated as an internal failure.
package errors

import (
	"errors"
	"net/http"
)

var (
	ErrEmailAlreadyInUse   = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountLocked       = errors.New("account locked, try again later")
	ErrMissingRefreshToken = errors.New("no refresh token provided")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrUserNotFound        = errors.New("user not found")
)

// StatusCode returns the HTTP status for a service error. Unknown
// errors are internal failures and must not leak detail to the caller.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrEmailAlreadyInUse):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingRefreshToken),
		errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the safe client-facing message for an error. Internal
// failures collapse into a generic message; the full error is logged
// server-side.
func Message(err error) string {
	for _, known := range []error{
		ErrEmailAlreadyInUse,
		ErrInvalidCredentials,
		ErrAccountLocked,
		ErrMissingRefreshToken,
		ErrInvalidToken,
		ErrUserNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}
