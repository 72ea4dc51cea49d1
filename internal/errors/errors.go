package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Shelf error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrValidation     ErrorCode = "VALIDATION"      // 422
	ErrStore          ErrorCode = "STORE"           // 500
	ErrScanFailed     ErrorCode = "SCAN_FAILED"     // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrQueueClosed    ErrorCode = "QUEUE_CLOSED"    // 503
)

// ShelfError represents a structured error with code, status, and details.
type ShelfError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *ShelfError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ShelfError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ShelfError {
	return &ShelfError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing managed record or config entry.
func NewNotFound(identifier string) *ShelfError {
	return &ShelfError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error, used for unique violations on the
// managed-games table.
func NewConflict(msg string, details map[string]any) *ShelfError {
	return &ShelfError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
		Details: details,
	}
}

// NewValidation creates a 422 error for a descriptor that failed validation.
func NewValidation(path, reason string) *ShelfError {
	return &ShelfError{
		Code:    ErrValidation,
		Status:  422,
		Message: fmt.Sprintf("invalid descriptor %s: %s", path, reason),
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// NewStore wraps a failure of the embedded store during a command.
func NewStore(op string, err error) *ShelfError {
	return &ShelfError{
		Code:    ErrStore,
		Status:  500,
		Message: fmt.Sprintf("store %s failed", op),
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewScanFailed creates a 500 error for a library scan that did not complete.
func NewScanFailed(err error) *ShelfError {
	msg := "library scan failed"
	if err != nil {
		msg = fmt.Sprintf("library scan failed: %v", err)
	}
	return &ShelfError{
		Code:    ErrScanFailed,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewQueueClosed creates a 503 error for commands submitted after shutdown.
func NewQueueClosed() *ShelfError {
	return &ShelfError{
		Code:    ErrQueueClosed,
		Status:  503,
		Message: "store queue is closed",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *ShelfError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &ShelfError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err is, or wraps, a ShelfError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ShelfError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As returns the ShelfError carried by err, if any.
func As(err error) (*ShelfError, bool) {
	var sErr *ShelfError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}
