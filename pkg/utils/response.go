package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// requestIDKey is the context key for request ID
const requestIDKey contextKey = "request_id"

// maxBodyBytes bounds JSON request bodies. Image and audio uploads for the
// AI studio arrive base64-encoded, hence the generous limit.
const maxBodyBytes = 20 << 20

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if the context is nil or no request ID is present.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context for distributed tracing.
// This is typically called by middleware to inject a unique identifier for each request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse represents a standard error response structure.
//
// Code is a stable machine-readable reason ("gate_required", "site_locked")
// that clients switch on; Error is the HTTP status text.
type ErrorResponse struct {
	Error     string `json:"error"`                // HTTP status text (e.g., "Bad Request")
	Code      string `json:"code,omitempty"`       // Machine-readable reason
	Message   string `json:"message,omitempty"`    // Detailed error message
	RequestID string `json:"request_id,omitempty"` // Request ID for distributed tracing
}

// RespondWithError sends a JSON error response with automatic request ID extraction.
//
// Example:
//
//	if product == nil {
//	    utils.RespondWithError(w, r, http.StatusNotFound, "Product not found")
//	    return
//	}
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	RespondWithErrorCode(w, r, statusCode, "", message)
}

// RespondWithErrorCode is RespondWithError with a machine-readable code.
func RespondWithErrorCode(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	requestID := GetRequestID(r.Context())
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}
	RespondWithJSONAndRequestID(w, statusCode, response, requestID)
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	requestID := GetRequestID(r.Context())
	RespondWithJSONAndRequestID(w, statusCode, data, requestID)
}

// RespondWithJSONAndRequestID writes data as JSON. Encoding failures are
// logged; the status line has already been sent at that point.
func RespondWithJSONAndRequestID(w http.ResponseWriter, statusCode int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("Failed to encode JSON response")
	}
}

// DecodeJSON reads a JSON request body into dst. Unknown fields are rejected
// so that typos in admin payloads fail loudly instead of being ignored.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// SetSessionCookie sets an HTTP-only cookie carrying the client session token.
//
// Security settings:
//   - HttpOnly: true (prevents JavaScript access)
//   - Secure: true in production (HTTPS only)
//   - SameSite: Lax (CSRF protection)
//   - Path: / (available to all routes)
func SetSessionCookie(w http.ResponseWriter, name, value string, expires time.Time, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}
