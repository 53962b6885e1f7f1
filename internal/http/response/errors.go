package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeAlreadyCheckedOut = "ALREADY_CHECKED_OUT"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// FromError maps service errors onto the JSON envelope. Unknown errors are logged
// and reported as 500 without leaking their text.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr  *domain.ValidationError
		nfErr *domain.NotFoundError
		aErr  *domain.AuthError
		sErr  *domain.StorageError
	)
	switch {
	case errors.As(err, &vErr):
		WriteErrorWithDetails(w, http.StatusBadRequest, vErr.Error(), CodeInvalidInput, vErr.Field)
	case errors.As(err, &nfErr):
		NotFound(w, nfErr.Error())
	case errors.As(err, &aErr):
		Unauthorized(w, aErr.Error())
	case errors.Is(err, domain.ErrAlreadyCheckedOut):
		WriteError(w, http.StatusConflict, err.Error(), CodeAlreadyCheckedOut)
	case errors.Is(err, domain.ErrUsernameTaken):
		Conflict(w, err.Error())
	case errors.As(err, &sErr):
		logger.ErrorContext(ctx, "Storage failure", "op", sErr.Op, "error", sErr.Err)
		InternalError(w, "storage unavailable")
	default:
		logger.ErrorContext(ctx, "Unhandled error", "error", err)
		InternalError(w, "internal error")
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message, CodeConflict)
}
