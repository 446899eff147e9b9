package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupJWTTest creates a JWT service with miniredis for testing
func setupJWTTest(t *testing.T) (*services.JWTService, *miniredis.Miniredis) {
	t.Helper()

	mr := testutil.SetupMiniRedis(t)
	jwtCfg := &config.JWTConfig{
		Secret:        []byte("test-secret-key-minimum-32-bytes-long!"),
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	return services.NewJWTService(jwtCfg, testutil.NewTestRedisDB(t, mr)), mr
}

// testHandler echoes the identity found in the request context
func testHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			http.Error(w, "No user ID in context", http.StatusInternalServerError)
			return
		}
		email, _ := GetUserEmail(r.Context())
		role, _ := GetUserRole(r.Context())

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("UserID: " + userID + ", Email: " + email + ", Role: " + string(role)))
	}
}

func TestJWTAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts valid token from Authorization header", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)
		userID := uuid.New()

		tokens, err := jwtSvc.GenerateTokenPair(ctx, userID, "test@example.com", models.RoleStudent)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, tokens.AccessToken)
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), userID.String())
		assert.Contains(t, rec.Body.String(), "Role: STUDENT")
	})

	t.Run("accepts valid token from cookie", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)

		tokens, err := jwtSvc.GenerateTokenPair(ctx, uuid.New(), "cookie@example.com", models.RoleStudent)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: tokens.AccessToken})
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "cookie@example.com")
	})

	t.Run("rejects request with missing token", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing token")
	})

	t.Run("rejects request with invalid token", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, "invalid_token_string")
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})

	t.Run("rejects refresh token", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)

		tokens, err := jwtSvc.GenerateTokenPair(ctx, uuid.New(), "test@example.com", models.RoleStudent)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, tokens.RefreshToken)
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		mr := testutil.SetupMiniRedis(t)
		jwtSvc := services.NewJWTService(&config.JWTConfig{
			Secret:        []byte("test-secret-key-minimum-32-bytes-long!"),
			AccessExpiry:  -time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
		}, testutil.NewTestRedisDB(t, mr))

		tokens, err := jwtSvc.GenerateTokenPair(ctx, uuid.New(), "expired@example.com", models.RoleStudent)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, tokens.AccessToken)
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("prefers Authorization header over cookie", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)
		userID1 := uuid.New()
		userID2 := uuid.New()

		tokens1, err := jwtSvc.GenerateTokenPair(ctx, userID1, "header@example.com", models.RoleStudent)
		require.NoError(t, err)
		tokens2, err := jwtSvc.GenerateTokenPair(ctx, userID2, "cookie@example.com", models.RoleStudent)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, tokens1.AccessToken)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: tokens2.AccessToken})
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), userID1.String())
		assert.NotContains(t, rec.Body.String(), userID2.String())
	})

	t.Run("rejects revoked token", func(t *testing.T) {
		jwtSvc, _ := setupJWTTest(t)

		tokens, err := jwtSvc.GenerateTokenPair(ctx, uuid.New(), "revoked@example.com", models.RoleStudent)
		require.NoError(t, err)
		require.NoError(t, jwtSvc.RevokeToken(ctx, tokens.AccessToken))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		testutil.SetAuthHeader(req, tokens.AccessToken)
		rec := httptest.NewRecorder()

		JWTAuth(jwtSvc)(testHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	adminOnly := RequireRole(models.RoleAdmin)(ok)

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"admin passes", WithIdentity(context.Background(), uuid.NewString(), "a@example.com", models.RoleAdmin), http.StatusNoContent},
		{"student is forbidden", WithIdentity(context.Background(), uuid.NewString(), "s@example.com", models.RoleStudent), http.StatusForbidden},
		{"anonymous is unauthorized", context.Background(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			adminOnly.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIdentityAccessors(t *testing.T) {
	t.Run("round trips identity", func(t *testing.T) {
		id := uuid.New()
		ctx := WithIdentity(context.Background(), id.String(), "test@example.com", models.RoleStudent)

		got, ok := GetUserUUID(ctx)
		assert.True(t, ok)
		assert.Equal(t, id, got)

		email, ok := GetUserEmail(ctx)
		assert.True(t, ok)
		assert.Equal(t, "test@example.com", email)

		role, ok := GetUserRole(ctx)
		assert.True(t, ok)
		assert.Equal(t, models.RoleStudent, role)
	})

	t.Run("returns false when absent", func(t *testing.T) {
		_, ok := GetUserID(context.Background())
		assert.False(t, ok)
		_, ok = GetUserUUID(context.Background())
		assert.False(t, ok)
		_, ok = GetUserRole(context.Background())
		assert.False(t, ok)
	})

	t.Run("returns false when user ID is wrong type or malformed", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, 12345)
		retrievedID, ok := GetUserID(ctx)
		assert.False(t, ok)
		assert.Empty(t, retrievedID)

		ctx = context.WithValue(context.Background(), UserIDKey, "not-a-uuid")
		_, ok = GetUserUUID(ctx)
		assert.False(t, ok)
	})
}
