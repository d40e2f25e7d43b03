package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body written for failed requests
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ErrorDetail carries the client-visible error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler writes AppError values as JSON HTTP responses
type Handler struct {
	logErrors bool
	logFn     func(msg string, err error)
}

// NewHandler creates an error handler. logFn may be nil.
func NewHandler(logErrors bool, logFn func(msg string, err error)) *Handler {
	return &Handler{logErrors: logErrors, logFn: logFn}
}

// Handle converts err to an AppError and writes the response
func (h *Handler) Handle(w http.ResponseWriter, err error, traceID string) {
	appErr := AsAppError(err)

	if h.logErrors && h.logFn != nil {
		h.logFn("request failed", appErr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		TraceID: traceID,
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// HandlePanic writes a generic internal error after a recovered panic
func (h *Handler) HandlePanic(w http.ResponseWriter, recovered interface{}, traceID string) {
	if h.logErrors && h.logFn != nil {
		h.logFn("panic recovered", Internal("panic", nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		TraceID: traceID,
		Error:   ErrorDetail{Code: CodeInternalError, Message: "an unexpected error occurred"},
	})
}
