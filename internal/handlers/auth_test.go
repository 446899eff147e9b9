package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type MockPasswordAuth struct {
	mock.Mock
}

func (m *MockPasswordAuth) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockPasswordAuth) Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockPasswordAuth) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockPasswordAuth) IssueTokens(ctx context.Context, user *models.User) (*services.AuthResult, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

type MockOAuthService struct {
	mock.Mock
}

func (m *MockOAuthService) GetAuthURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthService) AuthenticateUser(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TokenPair), args.Error(1)
}

func (m *MockTokenService) RevokeToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenService) RefreshExpiry() time.Duration {
	return 7 * 24 * time.Hour
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) CreateSession(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (string, error) {
	args := m.Called(ctx, userID, deviceInfo, ipAddress)
	return args.String(0), args.Error(1)
}

func (m *MockSessionService) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]*models.SessionInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SessionInfo), args.Error(1)
}

func (m *MockSessionService) RevokeSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	args := m.Called(ctx, userID, sessionID)
	return args.Error(0)
}

func (m *MockSessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Test helper functions

type authMocks struct {
	auth     *MockPasswordAuth
	oauth    *MockOAuthService
	tokens   *MockTokenService
	sessions *MockSessionService
}

func setupAuthHandler(t *testing.T) (*AuthHandler, authMocks) {
	t.Helper()

	m := authMocks{
		auth:     new(MockPasswordAuth),
		oauth:    new(MockOAuthService),
		tokens:   new(MockTokenService),
		sessions: new(MockSessionService),
	}
	handler := NewAuthHandler(
		m.auth,
		m.oauth,
		m.tokens,
		m.sessions,
		false, // not production (for easier testing with cookies)
		"http://localhost:3000/dashboard",
	)
	return handler, m
}

// withActor attaches the identity JWTAuth would have set.
func withActor(req *http.Request, userID uuid.UUID, role models.Role) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), userID.String(), "user@example.com", role)
	return req.WithContext(ctx)
}

func testAuthResult(user *models.User) *services.AuthResult {
	return &services.AuthResult{
		User:         user,
		AccessToken:  "access_token_xyz",
		RefreshToken: "refresh_token_abc",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
	}
}

func testTokenPair() *services.TokenPair {
	return &services.TokenPair{
		AccessToken:  "access_token_xyz",
		RefreshToken: "refresh_token_abc",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
	}
}

// Tests

func TestRegister(t *testing.T) {
	body := map[string]string{
		"email":      "ada@example.com",
		"password":   "correct horse",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	}

	t.Run("creates account, session and cookies", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		user := testutil.TestUserWithEmail("ada@example.com")

		m.auth.On("Register", mock.Anything, services.RegisterInput{
			Email: "ada@example.com", Password: "correct horse", FirstName: "Ada", LastName: "Lovelace",
		}).Return(testAuthResult(user), nil)
		m.sessions.On("CreateSession", mock.Anything, user.ID, mock.Anything, "203.0.113.9").Return("session_123", nil)

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", body)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusCreated)
		var response map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &response)
		assert.Equal(t, "access_token_xyz", response["access_token"])
		assert.Equal(t, "refresh_token_abc", response["refresh_token"])
		assert.Equal(t, "session_123", response["session_id"])
		assert.Equal(t, "ada@example.com", response["user"].(map[string]interface{})["email"])
		assert.NotContains(t, rec.Body.String(), "password")

		testutil.AssertCookie(t, rec, "access_token", "access_token_xyz")
		testutil.AssertCookie(t, rec, "refresh_token", "refresh_token_abc")
		testutil.AssertCookie(t, rec, "session_id", "session_123")

		m.auth.AssertExpectations(t)
		m.sessions.AssertExpectations(t)
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		m.auth.On("Register", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("register user: %w", services.ErrConflict))

		rec := httptest.NewRecorder()
		handler.Register(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", body))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation error is 400 with detail", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		m.auth.On("Register", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("password must be at least 8 characters: %w", services.ErrInvalidInput))

		rec := httptest.NewRecorder()
		handler.Register(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "at least 8 characters")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.Register(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"email": "a@b.c", "role": "ADMIN"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	creds := map[string]string{"email": "ada@example.com", "password": "correct horse"}

	t.Run("returns tokens and user", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		user := testutil.TestUser()

		m.auth.On("Login", mock.Anything, services.LoginInput{Email: "ada@example.com", Password: "correct horse"}).
			Return(testAuthResult(user), nil)
		m.sessions.On("CreateSession", mock.Anything, user.ID, mock.Anything, mock.Anything).Return("session_1", nil)

		rec := httptest.NewRecorder()
		handler.Login(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login", creds))

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		var response map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &response)
		assert.Equal(t, "access_token_xyz", response["access_token"])
		assert.Equal(t, user.ID.String(), response["user"].(map[string]interface{})["id"])
	})

	t.Run("session failure does not fail login", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		user := testutil.TestUser()

		m.auth.On("Login", mock.Anything, mock.Anything).Return(testAuthResult(user), nil)
		m.sessions.On("CreateSession", mock.Anything, user.ID, mock.Anything, mock.Anything).
			Return("", errors.New("redis down"))

		rec := httptest.NewRecorder()
		handler.Login(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login", creds))

		assert.Equal(t, http.StatusOK, rec.Code)
		for _, c := range rec.Result().Cookies() {
			assert.NotEqual(t, "session_id", c.Name)
		}
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"wrong password", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"deactivated", services.ErrInactiveUser, http.StatusForbidden},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, m := setupAuthHandler(t)
			m.auth.On("Login", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			handler.Login(rec, testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login", creds))

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
			m.sessions.AssertNotCalled(t, "CreateSession")
		})
	}
}

func TestGoogleLogin(t *testing.T) {
	t.Run("redirects to OAuth URL with state cookie", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		m.oauth.On("GetAuthURL", mock.Anything).Return("https://accounts.google.com/o/oauth2/auth?client_id=...")

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil)
		rec := httptest.NewRecorder()

		handler.GoogleLogin(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "accounts.google.com")

		stateCookie := testutil.AssertCookie(t, rec, "oauth_state")
		require.NotNil(t, stateCookie, "oauth_state cookie should be set")
		assert.NotEmpty(t, stateCookie.Value)
		assert.Equal(t, 600, stateCookie.MaxAge) // 10 minutes

		m.oauth.AssertExpectations(t)
	})

	t.Run("generates unique state for each request", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		var states []string
		m.oauth.On("GetAuthURL", mock.Anything).Return("https://accounts.google.com/oauth").Times(3)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.GoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))
			for _, c := range rec.Result().Cookies() {
				if c.Name == "oauth_state" {
					states = append(states, c.Value)
				}
			}
		}

		assert.Len(t, states, 3)
		assert.NotEqual(t, states[0], states[1])
		assert.NotEqual(t, states[1], states[2])
	})

	t.Run("404 when Google sign-in is disabled", func(t *testing.T) {
		m := authMocks{tokens: new(MockTokenService), sessions: new(MockSessionService)}
		handler := NewAuthHandler(new(MockPasswordAuth), nil, m.tokens, m.sessions, false, "")

		rec := httptest.NewRecorder()
		handler.GoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGoogleCallback(t *testing.T) {
	callback := func(state, code, cookieState string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state="+state+"&code="+code, nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: cookieState})
		return req
	}

	t.Run("successful authentication flow", func(t *testing.T) {
		handler, m := setupAuthHandler(t)
		user := testutil.TestUser()

		m.oauth.On("AuthenticateUser", mock.Anything, "valid_code").Return(user, nil)
		m.auth.On("IssueTokens", mock.Anything, user).Return(testAuthResult(user), nil)
		m.sessions.On("CreateSession", mock.Anything, user.ID, mock.Anything, mock.Anything).Return("session_123", nil)

		rec := httptest.NewRecorder()
		handler.GoogleCallback(rec, callback("test_state", "valid_code", "test_state"))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "http://localhost:3000/dashboard", rec.Header().Get("Location"))

		testutil.AssertCookie(t, rec, "access_token", "access_token_xyz")
		testutil.AssertCookie(t, rec, "refresh_token", "refresh_token_abc")
		testutil.AssertCookie(t, rec, "session_id", "session_123")

		m.oauth.AssertExpectations(t)
		m.auth.AssertExpectations(t)
		m.sessions.AssertExpectations(t)
	})

	t.Run("fails on state mismatch", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.GoogleCallback(rec, callback("wrong_state", "code", "correct_state"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid OAuth state")
	})

	t.Run("fails on missing code", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=test_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test_state"})
		rec := httptest.NewRecorder()

		handler.GoogleCallback(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "authorization code")
	})

	t.Run("fails on authentication error", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		m.oauth.On("AuthenticateUser", mock.Anything, "invalid_code").Return(nil, errors.New("authentication failed"))

		rec := httptest.NewRecorder()
		handler.GoogleCallback(rec, callback("test_state", "invalid_code", "test_state"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		m.oauth.AssertExpectations(t)
	})

	t.Run("deactivated account is 403", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		m.oauth.On("AuthenticateUser", mock.Anything, "code").Return(nil, services.ErrInactiveUser)

		rec := httptest.NewRecorder()
		handler.GoogleCallback(rec, callback("s", "code", "s"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("refreshes token from cookie", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		tokens := testTokenPair()
		m.tokens.On("RefreshAccessToken", mock.Anything, "old_refresh_token").Return(tokens, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "old_refresh_token"})
		rec := httptest.NewRecorder()

		handler.RefreshToken(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response services.TokenPair
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, tokens.AccessToken, response.AccessToken)
		assert.Equal(t, tokens.RefreshToken, response.RefreshToken)
		testutil.AssertCookie(t, rec, "refresh_token", tokens.RefreshToken)

		m.tokens.AssertExpectations(t)
	})

	t.Run("refreshes token from request body", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		m.tokens.On("RefreshAccessToken", mock.Anything, "body_refresh_token").Return(testTokenPair(), nil)

		bodyBytes, _ := json.Marshal(map[string]string{"refresh_token": "body_refresh_token"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.RefreshToken(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		m.tokens.AssertExpectations(t)
	})

	t.Run("fails on missing refresh token", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.RefreshToken(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing refresh token")
	})

	t.Run("fails on invalid refresh token", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		m.tokens.On("RefreshAccessToken", mock.Anything, "invalid_token").Return(nil, services.ErrInvalidToken)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "invalid_token"})
		rec := httptest.NewRecorder()

		handler.RefreshToken(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		m.tokens.AssertExpectations(t)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes tokens and sessions successfully", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		m.tokens.On("RevokeToken", mock.Anything, "access_token_value").Return(nil)
		m.tokens.On("RevokeToken", mock.Anything, "refresh_token_value").Return(nil)
		m.sessions.On("RevokeAllSessions", mock.Anything, userID).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "access_token_value"})
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh_token_value"})
		req = withActor(req, userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Logged out successfully")

		for _, c := range rec.Result().Cookies() {
			if c.Name == "access_token" || c.Name == "refresh_token" || c.Name == "session_id" {
				assert.Equal(t, -1, c.MaxAge, "Cookie %s should be cleared", c.Name)
			}
		}

		m.tokens.AssertExpectations(t)
		m.sessions.AssertExpectations(t)
	})

	t.Run("bearer header and body refresh token", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		m.tokens.On("RevokeToken", mock.Anything, "header_access").Return(nil)
		m.tokens.On("RevokeToken", mock.Anything, "body_refresh").Return(errors.New("already revoked"))
		m.sessions.On("RevokeAllSessions", mock.Anything, userID).Return(nil)

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": "body_refresh"})
		testutil.SetAuthHeader(req, "header_access")
		req = withActor(req, userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		m.tokens.AssertExpectations(t)
	})

	t.Run("handles logout without cookies gracefully", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		m.tokens.AssertNotCalled(t, "RevokeToken")
		m.sessions.AssertNotCalled(t, "RevokeAllSessions")
	})
}

func TestProfile(t *testing.T) {
	t.Run("returns current user", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		user := testutil.TestUser()
		m.auth.On("Profile", mock.Anything, user.ID).Return(user, nil)

		req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil), user.ID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.Profile(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &response)
		userMap := response["user"].(map[string]interface{})
		assert.Equal(t, user.Email, userMap["email"])
		assert.Equal(t, user.FirstName, userMap["first_name"])

		m.auth.AssertExpectations(t)
	})

	t.Run("fails on missing user ID in context", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.Profile(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deleted user is 401", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		m.auth.On("Profile", mock.Anything, userID).Return(nil, fmt.Errorf("get profile: %w", services.ErrNotFound))

		req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil), userID, models.RoleStudent)
		rec := httptest.NewRecorder()
		handler.Profile(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("fails on database error", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		m.auth.On("Profile", mock.Anything, userID).Return(nil, errors.New("database error"))

		req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil), userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.Profile(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		m.auth.AssertExpectations(t)
	})
}

func TestListSessions(t *testing.T) {
	t.Run("lists user sessions successfully", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		sessions := []*models.SessionInfo{
			{
				ID:         "session_1",
				DeviceInfo: "Chrome 120 · Windows 11 · Desktop",
				IPAddress:  "203.0.113.42",
				CreatedAt:  time.Now(),
			},
			{
				ID:         "session_2",
				DeviceInfo: "Safari 17 · iOS 17 · Mobile",
				IPAddress:  "198.51.100.10",
				CreatedAt:  time.Now().Add(-24 * time.Hour),
			},
		}
		m.sessions.On("ListUserSessions", mock.Anything, userID).Return(sessions, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "session_1"})
		req = withActor(req, userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.ListSessions(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &response)

		sessionsArray := response["sessions"].([]interface{})
		assert.Len(t, sessionsArray, 2)

		first := sessionsArray[0].(map[string]interface{})
		assert.True(t, first["is_current"].(bool))
		assert.Equal(t, "203.0.113.42", first["ip_address"])
		assert.False(t, sessionsArray[1].(map[string]interface{})["is_current"].(bool))

		m.sessions.AssertExpectations(t)
	})

	t.Run("fails without authentication", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.ListSessions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRevokeSession(t *testing.T) {
	t.Run("revokes session successfully", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		sessionID := "session_to_revoke"
		m.sessions.On("RevokeSession", mock.Anything, userID, sessionID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/auth/sessions/"+sessionID, nil)
		req = testutil.WithURLParams(req, map[string]string{"id": sessionID})
		req = withActor(req, userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.RevokeSession(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "revoked successfully")

		m.sessions.AssertExpectations(t)
	})

	t.Run("fails on missing session ID", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/auth/sessions/", nil)
		req = testutil.WithURLParams(req, nil)
		req = withActor(req, uuid.New(), models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.RevokeSession(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRevokeOtherSessions(t *testing.T) {
	t.Run("revokes all sessions except current", func(t *testing.T) {
		handler, m := setupAuthHandler(t)

		userID := uuid.New()
		sessions := []*models.SessionInfo{
			{ID: "current_session"},
			{ID: "old_session_1"},
			{ID: "old_session_2"},
		}

		m.sessions.On("ListUserSessions", mock.Anything, userID).Return(sessions, nil)
		m.sessions.On("RevokeSession", mock.Anything, userID, "old_session_1").Return(nil)
		m.sessions.On("RevokeSession", mock.Anything, userID, "old_session_2").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sessions/revoke-others", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "current_session"})
		req = withActor(req, userID, models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.RevokeOtherSessions(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response map[string]interface{}
		testutil.ParseJSONResponse(t, rec, &response)
		assert.Equal(t, float64(2), response["revoked_count"])

		m.sessions.AssertExpectations(t)
	})

	t.Run("fails without current session cookie", func(t *testing.T) {
		handler, _ := setupAuthHandler(t)

		req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/auth/sessions/revoke-others", nil), uuid.New(), models.RoleStudent)
		rec := httptest.NewRecorder()

		handler.RevokeOtherSessions(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Current session not found")
	})
}
