// Package apperror provides structured error handling for ledger, cash-day and sync operations.
// All business errors must use AppError so the HTTP and CLI surfaces can render them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal           = "INTERNAL_ERROR"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeRemoteUnavailable  = "REMOTE_UNAVAILABLE"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule       = "BUSINESS_RULE_VIOLATION"
	CodeEditWindowExpired  = "EDIT_WINDOW_EXPIRED"
	CodeBalanceOutstanding = "BALANCE_OUTSTANDING"
	CodeRepaymentLocked    = "REPAYMENT_DATE_LOCKED"

	// Cash-day state violations (409)
	CodeAlreadyOpen  = "ALREADY_OPEN"
	CodeNotOpen      = "NOT_OPEN"
	CodeNotClosed    = "NOT_CLOSED"
	CodeDayClosed    = "DAY_CLOSED"
	CodeStaleSession = "STALE_SESSION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the module.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, amounts, dates)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewEditWindowExpired is returned when a sale, purchase or cash entry is
// changed after the hard edit window has passed.
func NewEditWindowExpired(entity, id string, createdAt time.Time, window time.Duration) *AppError {
	return &AppError{
		Code:       CodeEditWindowExpired,
		Message:    fmt.Sprintf("%s can only be changed within %s of creation", entity, window),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"entity":     entity,
			"id":         id,
			"created_at": createdAt,
			"window":     window.String(),
		},
	}
}

// NewRemoteUnavailable wraps a network or auth failure against the remote store.
// Write paths swallow it; only read-through and operator commands surface it.
func NewRemoteUnavailable(op string, cause error) *AppError {
	return &AppError{
		Code:       CodeRemoteUnavailable,
		Message:    "Remote store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        cause,
	}
}

// NewPersistenceFailure wraps a local store failure. Always propagated.
func NewPersistenceFailure(op string, cause error) *AppError {
	return &AppError{
		Code:       CodePersistenceFailure,
		Message:    "Local store failure",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        cause,
	}
}

// NewAlreadyOpen creates a cash-day error for a date that already has an open record.
func NewAlreadyOpen(date string) *AppError {
	return &AppError{
		Code:       CodeAlreadyOpen,
		Message:    fmt.Sprintf("Cash day %s is already open", date),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"business_date": date},
	}
}

// NewNotOpen creates a cash-day error for closing a day that is not open.
func NewNotOpen(date string) *AppError {
	return &AppError{
		Code:       CodeNotOpen,
		Message:    fmt.Sprintf("Cash day %s is not open", date),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"business_date": date},
	}
}

// NewNotClosed creates a cash-day error for reopening a day that is not closed.
func NewNotClosed(date string) *AppError {
	return &AppError{
		Code:       CodeNotClosed,
		Message:    fmt.Sprintf("Cash day %s is not closed", date),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"business_date": date},
	}
}

// NewDayClosed is returned when opening a date that was already closed; use reopen instead.
func NewDayClosed(date string) *AppError {
	return &AppError{
		Code:       CodeDayClosed,
		Message:    fmt.Sprintf("Cash day %s is closed; reopen it instead", date),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"business_date": date},
	}
}

// NewStaleSession creates an error for an open record left over from a prior business date.
func NewStaleSession(dates []string) *AppError {
	return &AppError{
		Code:       CodeStaleSession,
		Message:    "A cash day from a previous date is still open",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"business_dates": dates},
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}

// IsRemoteUnavailable checks if error is CodeRemoteUnavailable
func IsRemoteUnavailable(err error) bool {
	return HasCode(err, CodeRemoteUnavailable)
}

// IsPersistenceFailure checks if error is CodePersistenceFailure
func IsPersistenceFailure(err error) bool {
	return HasCode(err, CodePersistenceFailure)
}
