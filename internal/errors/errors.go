package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Playbook error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"        // 401
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"  // 409
	ErrTitleTooShort      ErrorCode = "TITLE_TOO_SHORT"     // 422
	ErrSummaryTooShort    ErrorCode = "SUMMARY_TOO_SHORT"   // 422
	ErrMeaninglessContent ErrorCode = "MEANINGLESS_CONTENT" // 422
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrGenerationFailed   ErrorCode = "GENERATION_FAILED"   // 502
	ErrPersistenceFailed  ErrorCode = "PERSISTENCE_FAILED"  // 503
)

// PlaybookError represents a structured error with code, status, and details.
type PlaybookError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is kept for logging and errors.Unwrap; it is never rendered to users.
	cause error
}

// Error implements the error interface.
func (e *PlaybookError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *PlaybookError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PlaybookError {
	return &PlaybookError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for a missing or wrong bearer token.
func NewUnauthorized() *PlaybookError {
	return &PlaybookError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "missing or invalid authorization",
	}
}

// NewNotFound creates a 404 error for when an entry cannot be found.
func NewNotFound(id string) *PlaybookError {
	return &PlaybookError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInvalidTransition creates a 409 error for a lifecycle change that is not allowed.
func NewInvalidTransition(from, to string) *PlaybookError {
	return &PlaybookError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("cannot move entry from %q to %q", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

// NewTitleTooShort creates a 422 error for a title below the minimum length.
func NewTitleTooShort(min int) *PlaybookError {
	return &PlaybookError{
		Code:    ErrTitleTooShort,
		Status:  422,
		Message: fmt.Sprintf("Title must be at least %d characters", min),
		Details: map[string]any{"min_chars": min},
	}
}

// NewSummaryTooShort creates a 422 error for a summary below the minimum length.
func NewSummaryTooShort(min int) *PlaybookError {
	return &PlaybookError{
		Code:    ErrSummaryTooShort,
		Status:  422,
		Message: fmt.Sprintf("Summary must be at least %d characters", min),
		Details: map[string]any{"min_chars": min},
	}
}

// NewMeaninglessContent creates a 422 error for placeholder-looking text.
func NewMeaninglessContent(field string) *PlaybookError {
	return &PlaybookError{
		Code:    ErrMeaninglessContent,
		Status:  422,
		Message: fmt.Sprintf("The %s doesn't look like a real description. Please describe what actually happened.", field),
		Details: map[string]any{"field": field},
	}
}

// NewGenerationFailed creates a 502 error carrying the generation endpoint's message verbatim.
func NewGenerationFailed(msg string, cause error) *PlaybookError {
	if msg == "" {
		msg = "Generation failed"
	}
	return &PlaybookError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: msg,
		cause:   cause,
	}
}

// NewPersistenceFailed creates a 503 error for a storage call that did not complete.
func NewPersistenceFailed(op string, cause error) *PlaybookError {
	return &PlaybookError{
		Code:    ErrPersistenceFailed,
		Status:  503,
		Message: fmt.Sprintf("could not %s entry, please try again", op),
		Details: map[string]any{"operation": op},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PlaybookError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PlaybookError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a PlaybookError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *PlaybookError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}

// As returns err as a PlaybookError, wrapping unknown errors as internal.
func As(err error) *PlaybookError {
	var pErr *PlaybookError
	if stderrors.As(err, &pErr) {
		return pErr
	}
	return NewInternal(err)
}
