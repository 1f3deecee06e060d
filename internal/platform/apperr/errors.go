// Package apperr defines the error taxonomy shared by the services and the
// HTTP edge. Services wrap these sentinels with fmt.Errorf("%w"); handlers
// convert them with HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrUnauthenticated means no credential was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the credential is invalid or lacks the required role.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrPartialFailure marks a multi-write operation that left some writes applied.
	ErrPartialFailure   = errors.New("partial failure")
	ErrPaymentsDisabled = errors.New("payments are not configured")
)

// Validation returns an ErrValidation carrying a field-specific message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PartialFailureError reports that a payment record was written but the
// booking it refers to could not be marked as paid.
type PartialFailureError struct {
	BookingID string
	PaymentID string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("payment %s recorded but booking %s not marked paid: %v", e.PaymentID, e.BookingID, e.Err)
}

func (e *PartialFailureError) Unwrap() []error { return []error{ErrPartialFailure, e.Err} }

// Status maps an error to the HTTP status code reported to callers.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrPartialFailure):
		return http.StatusInternalServerError
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrPaymentsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err into an *echo.HTTPError. Internal errors keep a generic
// message; the original error is attached as the internal cause for logging.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := Status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError && !errors.Is(err, ErrPartialFailure) {
		msg = "internal server error"
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}
