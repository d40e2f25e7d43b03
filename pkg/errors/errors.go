package errors

import (
	"errors"
	"fmt"
)

// AppError is the error type returned across service boundaries
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As
func (e *AppError) Unwrap() error { return e.Err }

// Common error codes
const (
	CodeInvalidStatus     = "INVALID_STATUS"
	CodeUnknownUser       = "UNKNOWN_USER"
	CodePolicyEvaluation  = "POLICY_EVALUATION_FAILED"
	CodeInconsistentCount = "INCONSISTENT_CONNECTION_COUNT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternalError     = "INTERNAL_ERROR"
)

// InvalidStatus rejects a status value outside the enum or a transition the
// connection state does not permit.
func InvalidStatus(message string) *AppError {
	return &AppError{Code: CodeInvalidStatus, Message: message, Status: 422}
}

// InvalidStatusf is InvalidStatus with formatting
func InvalidStatusf(format string, args ...interface{}) *AppError {
	return InvalidStatus(fmt.Sprintf(format, args...))
}

// UnknownUser is raised only by settings-write paths; presence read paths
// treat absent users as offline instead.
func UnknownUser(userID string) *AppError {
	return &AppError{
		Code:    CodeUnknownUser,
		Message: "user does not exist",
		Details: userID,
		Status:  404,
	}
}

// PolicyEvaluation marks a failed external collaborator lookup during
// Resolve. Callers map it to the fail-closed offline default; it is never
// surfaced to viewers.
func PolicyEvaluation(cause error) *AppError {
	return &AppError{
		Code:    CodePolicyEvaluation,
		Message: "presence policy evaluation failed",
		Status:  500,
		Err:     cause,
	}
}

// InconsistentCount marks a connection-count drift found during
// reconciliation. Logged and self-healed, never user-facing.
func InconsistentCount(userID string, stored, actual int) *AppError {
	return &AppError{
		Code:    CodeInconsistentCount,
		Message: "connection count drift",
		Details: fmt.Sprintf("user=%s stored=%d actual=%d", userID, stored, actual),
		Status:  500,
	}
}

// Validation rejects malformed caller input
func Validation(message string, details string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Details: details, Status: 400}
}

// NotFound reports a missing resource on an explicit lookup
func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: 404}
}

// BadRequest rejects an unparseable request
func BadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: 400}
}

// Internal wraps an unexpected failure
func Internal(message string, cause error) *AppError {
	return &AppError{Code: CodeInternalError, Message: message, Status: 500, Err: cause}
}

// AsAppError extracts an *AppError from err, wrapping unknown errors as
// internal so handlers always have a status and code to write.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("an unexpected error occurred", err)
}
