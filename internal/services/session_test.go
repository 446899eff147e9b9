package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionService(t *testing.T) (*SessionService, *miniredis.Miniredis) {
	t.Helper()

	mr := testutil.SetupMiniRedis(t)
	return NewSessionService(testutil.NewTestRedisDB(t, mr), 7*24*time.Hour), mr
}

func TestCreateSession(t *testing.T) {
	svc, mr := setupSessionService(t)
	ctx := context.Background()
	userID := uuid.New()

	id, err := svc.CreateSession(ctx, userID, "Chrome 120 · Windows 10 · Desktop", "203.0.113.42")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	key := "session:" + userID.String() + ":" + id
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "203.0.113.42", mr.HGet(key, "ip_address"))
	assert.Equal(t, 7*24*time.Hour, mr.TTL(key))
}

func TestGetSession(t *testing.T) {
	svc, _ := setupSessionService(t)
	ctx := context.Background()
	userID := uuid.New()

	id, err := svc.CreateSession(ctx, userID, "Firefox", "10.0.0.1")
	require.NoError(t, err)

	t.Run("returns own session", func(t *testing.T) {
		info, err := svc.GetSession(ctx, userID, id)
		require.NoError(t, err)
		assert.Equal(t, id, info.ID)
		assert.Equal(t, "Firefox", info.DeviceInfo)
		assert.True(t, info.ExpiresAt.After(info.CreatedAt))
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		_, err := svc.GetSession(ctx, uuid.New(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListAndRevokeSessions(t *testing.T) {
	svc, _ := setupSessionService(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	empty, err := svc.ListUserSessions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a1, err := svc.CreateSession(ctx, alice, "Chrome", "10.0.0.1")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, alice, "Safari", "10.0.0.2")
	require.NoError(t, err)
	b1, err := svc.CreateSession(ctx, bob, "Firefox", "10.0.0.3")
	require.NoError(t, err)

	sessions, err := svc.ListUserSessions(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, svc.RevokeSession(ctx, alice, a1))
	assert.ErrorIs(t, svc.RevokeSession(ctx, alice, a1), ErrNotFound)
	assert.ErrorIs(t, svc.RevokeSession(ctx, alice, b1), ErrNotFound, "cannot revoke another user's session")

	require.NoError(t, svc.RevokeAllSessions(ctx, alice))
	sessions, err = svc.ListUserSessions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	bobs, err := svc.ListUserSessions(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, bobs, 1)
}

func TestExtractDeviceInfo(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"Chrome on Windows", testutil.UserAgents.Chrome, "Chrome"},
		{"Safari on macOS", testutil.UserAgents.Safari, "Safari"},
		{"Firefox on Windows", testutil.UserAgents.Firefox, "Firefox"},
		{"Mobile Safari", testutil.UserAgents.MobileSafari, "Mobile"},
		{"Empty user agent", testutil.UserAgents.Unknown, "Unknown Device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, ExtractDeviceInfo(tt.userAgent), tt.expected)
		})
	}
}

func TestSessionServiceConcurrency(t *testing.T) {
	svc, _ := setupSessionService(t)
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSession(ctx, userID, "Chrome", "10.0.0.1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sessions, err := svc.ListUserSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 10)
}
