package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

// validationMessage is shown for field errors on non-page responses.
const validationMessage = "Validation failed. Please check your input and try again."

// JSONError is the body of every JSON error response.
type JSONError struct {
	Error JSONErrorBody `json:"error"`
}

// JSONErrorBody carries the error code, a user-facing message and, for
// validation failures, the per-field messages.
type JSONErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes err to the client as JSON or plain text depending on
// the Accept header. Operation names and wrapped causes of internal errors
// are logged but never written.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		logger.Info("validation error", "op", ve.Op, "field_count", len(ve.Fields), "path", r.URL.Path)
		if acceptsJSON(r) {
			writeJSONError(w, status, JSONErrorBody{Code: domain.EINVALID, Message: "Validation failed", Fields: ve.Fields})
			return
		}
		http.Error(w, validationMessage, status)
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	logError(logger, r, err, code, domain.ErrorOp(err), status)

	if acceptsJSON(r) {
		writeJSONError(w, status, JSONErrorBody{Code: code, Message: message})
		return
	}
	http.Error(w, message, status)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway // every candidate model failed upstream
	case domain.ECONFIG:
		return http.StatusServiceUnavailable // no API key yet
	default:
		return http.StatusInternalServerError
	}
}

// ForbiddenResponse is used when a form fails CSRF validation.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logger.Warn("csrf validation failed", "path", r.URL.Path, "method", r.Method)
	if acceptsJSON(r) {
		writeJSONError(w, http.StatusForbidden, JSONErrorBody{Code: "EFORBIDDEN", Message: "Invalid or missing form token"})
		return
	}
	http.Error(w, "Your form has expired. Reload the page and try again.", http.StatusForbidden)
}

// InternalErrorResponse logs err and returns a generic 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// userMessage returns the text shown to the inspector for err.
func userMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return "Please check the highlighted fields and try again."
	}
	return domain.ErrorMessage(err)
}

// statusFor returns the HTTP status for any error.
func statusFor(err error) int {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return ErrorCodeToHTTPStatus(domain.ErrorCode(err))
}

// logError logs server failures at error level and client mistakes at info.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	switch {
	case status >= 500:
		logger.Error("server error", attrs...)
	case status >= 400:
		logger.Info("client error", attrs...)
	}
}

// acceptsJSON reports whether the client asked for, or sent, JSON.
func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func writeJSONError(w http.ResponseWriter, status int, body JSONErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONError{Error: body})
}
