package models

import (
	"errors"
	"net/http"
)

// ErrorCode identifies a failure class that clients can act on
type ErrorCode string

const (
	ErrCodeValidation              ErrorCode = "VALIDATION_ERROR"
	ErrCodeInsufficientSeats       ErrorCode = "INSUFFICIENT_SEATS"
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeBookingExpired          ErrorCode = "BOOKING_EXPIRED"
	ErrCodeBookingAlreadyPaid      ErrorCode = "BOOKING_ALREADY_PAID"
	ErrCodeAmountMismatch          ErrorCode = "AMOUNT_MISMATCH"
	ErrCodeUserMismatch            ErrorCode = "USER_MISMATCH"
	ErrCodeIdempotencyKeyMissing   ErrorCode = "IDEMPOTENCY_KEY_MISSING"
	ErrCodeDuplicateIdempotencyKey ErrorCode = "DUPLICATE_IDEMPOTENCY_KEY"
	ErrCodeUpstreamUnavailable     ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamError           ErrorCode = "UPSTREAM_ERROR"
	ErrCodeStoreError              ErrorCode = "STORE_ERROR"
)

// AppError is a typed service error carrying the failure class and the
// HTTP status it maps to at the boundary. Client-caused failures map to
// 4xx, upstream/store failures to 5xx.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a typed application error
func NewAppError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewStoreError wraps a database failure as a server-side error. The
// underlying error is not exposed to clients.
func NewStoreError(message string) *AppError {
	return NewAppError(ErrCodeStoreError, message, http.StatusInternalServerError)
}

// AsAppError extracts an AppError from an error chain, if present
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given failure class
func IsErrorCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
