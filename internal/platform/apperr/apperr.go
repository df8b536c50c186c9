// Package apperr is the error taxonomy shared by services and handlers.
// Services return *Error values built from one of the sentinel kinds;
// handlers convert them with HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
)

// Error carries a client-facing detail message and its kind.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args []any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args)
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args)
}

// Status maps an error to its HTTP status. Conflicts answer 403, matching
// the API's published behaviour.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err into an *echo.HTTPError. Errors outside the taxonomy
// keep their cause in Internal and expose only a generic message.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	status := Status(err)
	var ae *Error
	if status == http.StatusInternalServerError || !errors.As(err, &ae) {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, ae.Detail)
}
