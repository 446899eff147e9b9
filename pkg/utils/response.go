// Package utils holds HTTP helpers shared by every handler: request ID
// propagation, uniform JSON responses, request decoding, auth cookies,
// pagination, client IP extraction and startup retries.
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

type contextKey string

const requestIDKey contextKey = "request_id"

// MaxBodyBytes caps the size of decoded JSON request bodies.
const MaxBodyBytes = 1 << 20

// GetRequestID returns the request ID stored by the Logger middleware, or
// an empty string.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse is the body of every non-2xx JSON response.
//
//	{"error": "Not Found", "message": "Application 6f1c... not found", "request_id": "..."}
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondWithError writes an ErrorResponse with the request ID taken from
// the request context.
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	RespondWithJSON(w, r, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	})
}

// RespondWithJSON encodes data with the given status code. Encoding failures
// are logged since the header has already been written.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Msg("Failed to encode JSON response")
	}
}

// RespondWithMessage writes {"message": ..., "request_id": ...}.
//
//	utils.RespondWithMessage(w, r, http.StatusOK, "Application deleted successfully")
func RespondWithMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := map[string]string{"message": message}
	if requestID := GetRequestID(r.Context()); requestID != "" {
		response["request_id"] = requestID
	}
	RespondWithJSON(w, r, statusCode, response)
}

// DecodeJSON decodes a single JSON object from the request body into dst.
//
// Rejected input:
//   - Bodies larger than MaxBodyBytes
//   - Fields that dst does not declare
//   - Trailing data after the first object
//
// Callers answer 400 with the returned error's message:
//
//	var in models.ApplicationInput
//	if err := utils.DecodeJSON(w, r, &in); err != nil {
//	    utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
//	    return
//	}
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// SetAuthCookie sets an HttpOnly, SameSite=Lax cookie. It is marked Secure
// in production.
func SetAuthCookie(w http.ResponseWriter, name, value string, expires time.Time, isProduction bool) {
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

// SetAuthCookieWithMaxAge is SetAuthCookie with a relative lifetime in
// seconds, used for the short lived OAuth state cookie.
func SetAuthCookieWithMaxAge(w http.ResponseWriter, name, value string, maxAge int, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// ClearAuthCookies expires every named cookie.
func ClearAuthCookies(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}
