package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PasswordAuthenticator is implemented by services.AuthService.
type PasswordAuthenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	IssueTokens(ctx context.Context, user *models.User) (*services.AuthResult, error)
}

// OAuthService defines the interface for OAuth 2.0 operations.
// Handles Google OAuth authentication flow.
type OAuthService interface {
	GetAuthURL(state string) string
	AuthenticateUser(ctx context.Context, code string) (*models.User, error)
}

// TokenService defines the token lifecycle operations used after sign in:
// rotation and revocation.
type TokenService interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RevokeToken(ctx context.Context, token string) error
	RefreshExpiry() time.Duration
}

// SessionService defines the interface for session management operations.
// Tracks the devices a user is signed in on.
type SessionService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (string, error)
	ListUserSessions(ctx context.Context, userID uuid.UUID) ([]*models.SessionInfo, error)
	RevokeSession(ctx context.Context, userID uuid.UUID, sessionID string) error
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error
}

// AuthHandler handles all authentication-related HTTP endpoints:
//   - email and password registration and login
//   - Google OAuth 2.0 login (when configured)
//   - JWT rotation and revocation
//   - device session listing and revocation
//
// Tokens are returned in the JSON body for API clients and also set as
// HttpOnly cookies for browsers.
type AuthHandler struct {
	auth                 PasswordAuthenticator
	oauthService         OAuthService // nil when Google sign-in is disabled
	tokens               TokenService
	sessionService       SessionService
	isProduction         bool   // Production mode flag (affects cookie settings)
	postLoginRedirectURL string // Where to redirect after Google login
}

// NewAuthHandler creates a new authentication handler with all required dependencies.
//
// Example:
//
//	authHandler := handlers.NewAuthHandler(authSvc, googleSvc, jwtSvc, sessionSvc,
//	    cfg.Server.IsProduction(), cfg.Server.FrontendURL+"/dashboard")
//
//	r.Post("/api/v1/auth/login", authHandler.Login)
func NewAuthHandler(
	auth PasswordAuthenticator,
	oauthService OAuthService,
	tokens TokenService,
	sessionService SessionService,
	isProduction bool,
	postLoginRedirectURL string,
) *AuthHandler {
	return &AuthHandler{
		auth:                 auth,
		oauthService:         oauthService,
		tokens:               tokens,
		sessionService:       sessionService,
		isProduction:         isProduction,
		postLoginRedirectURL: postLoginRedirectURL,
	}
}

// authResponse is an AuthResult plus the device session it opened.
type authResponse struct {
	*services.AuthResult
	SessionID string `json:"session_id,omitempty"`
}

// startSession records the device, sets the auth cookies and returns the
// session id. A failed session write does not fail the sign in.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, result *services.AuthResult) string {
	deviceInfo := services.ExtractDeviceInfo(r.UserAgent())
	ipAddress := utils.ExtractClientIP(r)

	sessionID, err := h.sessionService.CreateSession(r.Context(), result.User.ID, deviceInfo, ipAddress)
	if err != nil {
		log.Error().Err(err).Str("user_id", result.User.ID.String()).Msg("Failed to create session")
	}

	refreshExpiry := time.Now().Add(h.tokens.RefreshExpiry())
	utils.SetAuthCookie(w, "access_token", result.AccessToken, result.ExpiresAt, h.isProduction)
	utils.SetAuthCookie(w, "refresh_token", result.RefreshToken, refreshExpiry, h.isProduction)
	if sessionID != "" {
		utils.SetAuthCookie(w, "session_id", sessionID, refreshExpiry, h.isProduction)
	}
	return sessionID
}

func authResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, services.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, services.ErrInactiveUser):
		return "inactive"
	case errors.Is(err, services.ErrConflict):
		return "conflict"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

// Register creates a student account and signs it in.
//
// Example request:
//
//	POST /api/v1/auth/register
//	{"email": "ada@example.com", "password": "correct horse", "first_name": "Ada", "last_name": "Lovelace"}
//
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      201  {object}  authResponse
// @Failure      400  {object}  utils.ErrorResponse  "Invalid input"
// @Failure      409  {object}  utils.ErrorResponse  "Email already registered"
// @Failure      429  {object}  utils.ErrorResponse  "Rate limited"
// @Router       /api/v1/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.auth.Register(r.Context(), in)
	middleware.IncrementAuthAttempts("register", authResult(err))
	if err != nil {
		respondWithServiceError(w, r, err, "register")
		return
	}

	sessionID := h.startSession(w, r, result)
	utils.RespondWithJSON(w, r, http.StatusCreated, authResponse{AuthResult: result, SessionID: sessionID})
}

// Login authenticates with email and password.
//
// Unknown emails and wrong passwords both return 401 so the response does
// not reveal which accounts exist. Deactivated accounts return 403.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  authResponse
// @Failure      401  {object}  utils.ErrorResponse  "Invalid email or password"
// @Failure      403  {object}  utils.ErrorResponse  "Account deactivated"
// @Failure      429  {object}  utils.ErrorResponse  "Rate limited"
// @Router       /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.auth.Login(r.Context(), in)
	middleware.IncrementAuthAttempts("password", authResult(err))
	if err != nil {
		respondWithServiceError(w, r, err, "login")
		return
	}

	sessionID := h.startSession(w, r, result)
	utils.RespondWithJSON(w, r, http.StatusOK, authResponse{AuthResult: result, SessionID: sessionID})
}

// GoogleLogin initiates the Google OAuth 2.0 authentication flow.
// It stores a CSRF state token in a 10 minute HttpOnly cookie and redirects
// to Google's consent screen.
//
// @Summary      Initiate Google OAuth login
// @Tags         auth
// @Success      307  {string}  string  "Redirect to Google OAuth"
// @Router       /api/v1/auth/google/login [get]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauthService == nil {
		utils.RespondWithError(w, r, http.StatusNotFound, "Google sign-in is not configured")
		return
	}

	state := services.GenerateState()
	utils.SetAuthCookieWithMaxAge(w, "oauth_state", state, 600, h.isProduction)

	http.Redirect(w, r, h.oauthService.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback handles the OAuth 2.0 callback from Google.
//
// Flow:
//  1. Verify CSRF state token matches stored cookie
//  2. Exchange authorization code for user data
//  3. Create, link or load the user
//  4. Issue tokens, record the device session and set cookies
//  5. Redirect to the frontend
//
// @Summary      Google OAuth callback
// @Tags         auth
// @Param        state  query  string  true  "OAuth state (CSRF protection)"
// @Param        code   query  string  true  "Authorization code from Google"
// @Success      303    {string}  string  "Redirect to frontend"
// @Failure      400    {object}  utils.ErrorResponse  "Invalid state or missing code"
// @Failure      401    {object}  utils.ErrorResponse  "Authentication failed"
// @Router       /api/v1/auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauthService == nil {
		utils.RespondWithError(w, r, http.StatusNotFound, "Google sign-in is not configured")
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		log.Warn().Err(err).Msg("Missing OAuth state cookie")
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		log.Warn().Msg("OAuth state mismatch")
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	utils.ClearAuthCookies(w, "oauth_state")

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn().Msg("Missing authorization code")
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing authorization code")
		return
	}

	user, err := h.oauthService.AuthenticateUser(r.Context(), code)
	if err != nil {
		middleware.IncrementAuthAttempts("google", authResult(err))
		if errors.Is(err, services.ErrInactiveUser) {
			respondWithServiceError(w, r, err, "authenticate")
			return
		}
		log.Error().Err(err).Msg("Failed to authenticate user")
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Authentication failed")
		return
	}

	result, err := h.auth.IssueTokens(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate tokens")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	middleware.IncrementAuthAttempts("google", "success")
	h.startSession(w, r, result)

	redirectURL := h.postLoginRedirectURL
	if redirectURL == "" {
		redirectURL = "/"
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// RefreshToken rotates a refresh token into a new token pair. The old
// refresh token is invalidated.
//
// The token is read from the refresh_token cookie, or from a JSON body
// {"refresh_token": "..."}.
//
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200   {object}  services.TokenPair  "New token pair"
// @Failure      400   {object}  utils.ErrorResponse  "Invalid request or missing token"
// @Failure      401   {object}  utils.ErrorResponse  "Invalid or expired refresh token"
// @Router       /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if cookie, err := r.Cookie("refresh_token"); err == nil && cookie.Value != "" {
		refreshToken = cookie.Value
	} else {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
			return
		}
		refreshToken = req.RefreshToken
	}

	if refreshToken == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing refresh token")
		return
	}

	tokens, err := h.tokens.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		middleware.IncrementTokenRefresh("invalid")
		log.Warn().Err(err).Msg("Failed to refresh token")
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	middleware.IncrementTokenRefresh("success")

	utils.SetAuthCookie(w, "access_token", tokens.AccessToken, tokens.ExpiresAt, h.isProduction)
	utils.SetAuthCookie(w, "refresh_token", tokens.RefreshToken, time.Now().Add(h.tokens.RefreshExpiry()), h.isProduction)

	utils.RespondWithJSON(w, r, http.StatusOK, tokens)
}

// Logout revokes the presented tokens, deletes every device session of the
// user and clears the auth cookies. Revocation failures are logged; the
// response is always 200.
//
// The access token comes from the Authorization header or cookie. The
// refresh token comes from the cookie or an optional JSON body.
//
// @Summary      Logout user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string  "Logged out successfully"
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := utils.BearerToken(r)
	if accessToken == "" {
		if cookie, err := r.Cookie("access_token"); err == nil {
			accessToken = cookie.Value
		}
	}

	var refreshToken string
	if cookie, err := r.Cookie("refresh_token"); err == nil {
		refreshToken = cookie.Value
	} else {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if json.NewDecoder(r.Body).Decode(&req) == nil {
			refreshToken = req.RefreshToken
		}
	}

	for _, token := range []string{accessToken, refreshToken} {
		if token == "" {
			continue
		}
		if err := h.tokens.RevokeToken(r.Context(), token); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke token")
		}
	}

	if uid, ok := middleware.GetUserUUID(r.Context()); ok {
		if err := h.sessionService.RevokeAllSessions(r.Context(), uid); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke sessions")
		}
	}

	utils.ClearAuthCookies(w, "access_token", "refresh_token", "session_id")
	utils.RespondWithMessage(w, r, http.StatusOK, "Logged out successfully")
}

// Profile returns the current authenticated user.
//
// Response:
//
//	{
//	  "user": {
//	    "id": "550e8400-e29b-41d4-a716-446655440000",
//	    "email": "ada@example.com",
//	    "role": "STUDENT",
//	    ...
//	  }
//	}
//
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}  "User profile"
// @Failure      401  {object}  utils.ErrorResponse     "Unauthorized or invalid token"
// @Router       /api/v1/auth/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Profile(r.Context(), actor.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		respondWithServiceError(w, r, err, "fetch user information")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// sessionResponse is one device session as listed to its owner.
type sessionResponse struct {
	ID        string `json:"id"`
	Device    string `json:"device"`
	IPAddress string `json:"ip_address"`
	LastUsed  string `json:"last_used"`
	IsCurrent bool   `json:"is_current"`
}

// ListSessions lists the signed-in devices of the current user. The session
// named by the session_id cookie is marked is_current.
//
// @Summary      List active sessions
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}  "List of sessions"
// @Router       /api/v1/auth/sessions [get]
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	currentSessionID := ""
	if sessionCookie, err := r.Cookie("session_id"); err == nil {
		currentSessionID = sessionCookie.Value
	}

	sessions, err := h.sessionService.ListUserSessions(r.Context(), actor.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sessions")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := make([]sessionResponse, len(sessions))
	for i, session := range sessions {
		response[i] = sessionResponse{
			ID:        session.ID,
			Device:    session.DeviceInfo,
			IPAddress: session.IPAddress,
			LastUsed:  session.CreatedAt.Format(time.RFC3339),
			IsCurrent: session.ID == currentSessionID,
		}
	}

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"sessions": response,
	})
}

// RevokeSession logs out one device of the current user.
//
// @Summary      Revoke a session
// @Tags         auth
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  map[string]string   "Session revoked"
// @Router       /api/v1/auth/sessions/{id} [delete]
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing session ID")
		return
	}

	if err := h.sessionService.RevokeSession(r.Context(), actor.UserID, sessionID); err != nil {
		log.Error().Err(err).Msg("Failed to revoke session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to revoke session")
		return
	}

	utils.RespondWithMessage(w, r, http.StatusOK, "Session revoked successfully")
}

// RevokeOtherSessions logs out every device except the one named by the
// session_id cookie.
//
// @Summary      Revoke all other sessions
// @Tags         auth
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}  "Sessions revoked"
// @Failure      400  {object}  utils.ErrorResponse     "Current session not found"
// @Router       /api/v1/auth/sessions/revoke-others [post]
func (h *AuthHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	currentSessionID := ""
	if sessionCookie, err := r.Cookie("session_id"); err == nil {
		currentSessionID = sessionCookie.Value
	}
	if currentSessionID == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Current session not found")
		return
	}

	sessions, err := h.sessionService.ListUserSessions(r.Context(), actor.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sessions")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	revokedCount := 0
	for _, session := range sessions {
		if session.ID == currentSessionID {
			continue
		}
		if err := h.sessionService.RevokeSession(r.Context(), actor.UserID, session.ID); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to revoke session")
			continue
		}
		revokedCount++
	}

	log.Info().
		Str("user_id", actor.UserID.String()).
		Int("revoked_count", revokedCount).
		Msg("Other sessions revoked")

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":       "Other sessions revoked successfully",
		"revoked_count": revokedCount,
	})
}
