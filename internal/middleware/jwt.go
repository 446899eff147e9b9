// Package middleware provides HTTP middleware components for the API.
// Middleware functions wrap HTTP handlers to provide cross-cutting concerns
// like authentication, logging, metrics, and rate limiting.
//
// Middleware in this package:
//   - JWT authentication and role based authorization
//   - Structured request/response logging with correlation IDs
//   - Prometheus metrics collection, including the realtime gateway gauges
//   - Rate limiting per IP address
//
// All middleware is designed to be composable with Chi router.
package middleware

import (
	"context"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey holds the authenticated user's ID as a string.
	UserIDKey contextKey = "user_id"

	// UserEmailKey holds the authenticated user's email.
	UserEmailKey contextKey = "email"

	// UserRoleKey holds the authenticated user's models.Role.
	UserRoleKey contextKey = "role"
)

// TokenValidator validates access tokens. *services.JWTService implements
// it; the notification gateway uses the same interface for its handshake.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*services.Claims, error)
}

// JWTAuth creates middleware that validates JWT access tokens and adds the
// caller's identity to the request context.
//
// Token sources (checked in order):
//  1. Authorization header: "Bearer <token>"
//  2. Cookie: access_token=<token>
//
// Refresh tokens are rejected here even though they carry a valid
// signature. A missing or invalid token yields 401 Unauthorized.
//
// Usage:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.JWTAuth(jwtService))
//	    r.Get("/api/v1/auth/profile", authHandler.Profile)
//	    r.With(middleware.RequireRole(models.RoleAdmin)).Get("/api/v1/users", userHandler.List)
//	})
func JWTAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := utils.BearerToken(r)
			if token == "" {
				cookie, err := r.Cookie("access_token")
				if err != nil || cookie.Value == "" {
					log.Warn().Str("path", r.URL.Path).Msg("Missing authorization token")
					utils.RespondWithError(w, r, http.StatusUnauthorized, "missing token")
					return
				}
				token = cookie.Value
			}

			claims, err := validator.ValidateAccessToken(r.Context(), token)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID, claims.Email, claims.Role)

			log.Debug().
				Str("user_id", claims.UserID).
				Str("role", string(claims.Role)).
				Msg("User authenticated via JWT")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not one of roles with 403.
// It must run after JWTAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				utils.RespondWithError(w, r, http.StatusUnauthorized, "missing token")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			userID, _ := GetUserID(r.Context())
			log.Warn().
				Str("user_id", userID).
				Str("role", string(role)).
				Str("path", r.URL.Path).
				Msg("Insufficient role")
			utils.RespondWithError(w, r, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// WithIdentity stores an authenticated identity in ctx.
func WithIdentity(ctx context.Context, userID, email string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	return context.WithValue(ctx, UserRoleKey, role)
}

// GetUserID extracts the authenticated user's ID from the request context.
//
//	userID, ok := middleware.GetUserID(r.Context())
//	if !ok {
//	    utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
//	    return
//	}
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserUUID is GetUserID parsed into a UUID. It reports false when the
// value is absent or malformed.
func GetUserUUID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetUserEmail extracts the authenticated user's email from the request context.
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// GetUserRole extracts the authenticated user's role from the request context.
func GetUserRole(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(models.Role)
	return role, ok
}
