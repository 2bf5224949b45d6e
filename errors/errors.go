// Package errors defines the relay's error taxonomy and its mapping to the
// wire. Every failure is reported synchronously as a structured result; none
// is fatal to the process.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingFields     = fmt.Errorf("required field is missing or empty")
	ErrUserExists        = fmt.Errorf("handle is already registered")
	ErrUserNotFound      = fmt.Errorf("handle is not registered")
	ErrSenderNotFound    = fmt.Errorf("sender handle is not registered")
	ErrRecipientNotFound = fmt.Errorf("recipient handle is not registered")
	ErrWrongPassword     = fmt.Errorf("secret does not match")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)

// WireCode translates a sentinel into the code carried in failure results.
// Unknown sender and recipient both surface as user_not_found: the caller
// only needs to know that a referenced handle does not exist.
func WireCode(err error) string {
	switch {
	case stderrors.Is(err, ErrMissingFields):
		return "missing_fields"
	case stderrors.Is(err, ErrUserExists):
		return "user_exists"
	case stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrSenderNotFound),
		stderrors.Is(err, ErrRecipientNotFound):
		return "user_not_found"
	case stderrors.Is(err, ErrWrongPassword):
		return "wrong_password"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps a sentinel to the status used by the stateless gateway.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrMissingFields), stderrors.Is(err, ErrUserExists):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrSenderNotFound),
		stderrors.Is(err, ErrRecipientNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrWrongPassword):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
