package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGoogleUserStore struct {
	mock.Mock
}

func (m *mockGoogleUserStore) UpsertGoogleUser(ctx context.Context, googleID, email, firstName, lastName string) (*models.User, error) {
	args := m.Called(ctx, googleID, email, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// newGoogleStub serves both the token endpoint and the userinfo endpoint.
func newGoogleStub(t *testing.T, tokenStatus int, info interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mock-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch v := info.(type) {
		case string:
			w.Write([]byte(v))
		default:
			json.NewEncoder(w).Encode(v)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupGoogleAuth(t *testing.T, srv *httptest.Server) (*GoogleAuthService, *mockGoogleUserStore) {
	t.Helper()

	store := new(mockGoogleUserStore)
	cfg := &config.OAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/api/v1/auth/google/callback",
	}
	if srv != nil {
		cfg.UserInfoURL = srv.URL + "/userinfo"
	}

	svc := NewGoogleAuthService(cfg, store)
	if srv != nil {
		svc.config.Endpoint.TokenURL = srv.URL + "/token"
	}
	return svc, store
}

func TestGetAuthURL(t *testing.T) {
	svc, _ := setupGoogleAuth(t, nil)

	u, err := url.Parse(svc.GetAuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestAuthenticateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts the Google profile", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, GoogleUserInfo{
			ID:         "google-123",
			Email:      "NewUser@Example.com",
			GivenName:  "New",
			FamilyName: "User",
		})
		svc, store := setupGoogleAuth(t, srv)

		user := testutil.TestUserWithEmail("newuser@example.com")
		store.On("UpsertGoogleUser", mock.Anything, "google-123", "newuser@example.com", "New", "User").
			Return(user, nil)

		got, err := svc.AuthenticateUser(ctx, "test-code")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		store.AssertExpectations(t)
	})

	t.Run("splits the display name when given names are missing", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, GoogleUserInfo{
			ID:    "google-456",
			Email: "ada@example.com",
			Name:  "Ada King Lovelace",
		})
		svc, store := setupGoogleAuth(t, srv)

		store.On("UpsertGoogleUser", mock.Anything, "google-456", "ada@example.com", "Ada King", "Lovelace").
			Return(testutil.TestUser(), nil)

		_, err := svc.AuthenticateUser(ctx, "test-code")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("fails when code exchange fails", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusBadRequest, nil)
		svc, store := setupGoogleAuth(t, srv)

		_, err := svc.AuthenticateUser(ctx, "bad-code")
		assert.ErrorContains(t, err, "failed to exchange code")
		store.AssertNotCalled(t, "UpsertGoogleUser")
	})

	t.Run("fails on malformed user info", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, "{not json")
		svc, _ := setupGoogleAuth(t, srv)

		_, err := svc.AuthenticateUser(ctx, "test-code")
		assert.ErrorContains(t, err, "failed to decode user info")
	})

	t.Run("rejects deactivated accounts", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, GoogleUserInfo{ID: "g", Email: "x@example.com"})
		svc, store := setupGoogleAuth(t, srv)

		user := testutil.TestUser()
		user.IsActive = false
		store.On("UpsertGoogleUser", mock.Anything, "g", "x@example.com", "", "").Return(user, nil)

		_, err := svc.AuthenticateUser(ctx, "test-code")
		assert.ErrorIs(t, err, ErrInactiveUser)
	})

	t.Run("maps repository failures", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, GoogleUserInfo{ID: "g", Email: "x@example.com"})
		svc, store := setupGoogleAuth(t, srv)

		store.On("UpsertGoogleUser", mock.Anything, "g", "x@example.com", "", "").
			Return(nil, database.ErrDuplicate)

		_, err := svc.AuthenticateUser(ctx, "test-code")
		assert.ErrorIs(t, err, ErrConflict)
	})
}
