package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockExpiry struct {
	mock.Mock
}

func (m *mockExpiry) DeactivateExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type fixedConnections int

func (c fixedConnections) ConnectedClients() int { return int(c) }

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		Enabled:        true,
		ExpirySchedule: "@hourly",
		GaugesSchedule: "@every 1m",
	}
}

func TestNewScheduler(t *testing.T) {
	t.Run("registers both jobs", func(t *testing.T) {
		s, err := NewScheduler(testJobsConfig(), new(mockExpiry), nil, fixedConnections(0))
		require.NoError(t, err)
		assert.Equal(t, 2, s.Jobs())
	})

	t.Run("skips jobs without dependencies", func(t *testing.T) {
		s, err := NewScheduler(testJobsConfig(), nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Jobs())
	})

	t.Run("rejects bad spec", func(t *testing.T) {
		cfg := testJobsConfig()
		cfg.ExpirySchedule = "every tuesday"

		_, err := NewScheduler(cfg, new(mockExpiry), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), JobDeactivateExpired)
	})
}

func TestDeactivateExpired(t *testing.T) {
	t.Run("delegates", func(t *testing.T) {
		expiry := new(mockExpiry)
		expiry.On("DeactivateExpired", mock.Anything).Return(int64(3), nil)

		s, err := NewScheduler(testJobsConfig(), expiry, nil, nil)
		require.NoError(t, err)

		assert.NoError(t, s.DeactivateExpired(context.Background()))
		expiry.AssertExpectations(t)
	})

	t.Run("propagates failure", func(t *testing.T) {
		expiry := new(mockExpiry)
		expiry.On("DeactivateExpired", mock.Anything).Return(int64(0), errors.New("db down"))

		s, err := NewScheduler(testJobsConfig(), expiry, nil, nil)
		require.NoError(t, err)

		assert.Error(t, s.DeactivateExpired(context.Background()))
	})
}

func TestRefreshGauges(t *testing.T) {
	t.Run("counts sessions in redis", func(t *testing.T) {
		mr := testutil.SetupMiniRedis(t)
		redisDB := testutil.NewTestRedisDB(t, mr)
		ctx := context.Background()

		for _, id := range []string{"a", "b"} {
			mr.HSet("session:"+id, "user_id", "u")
		}

		s, err := NewScheduler(testJobsConfig(), nil, redisDB, fixedConnections(5))
		require.NoError(t, err)
		assert.NoError(t, s.RefreshGauges(ctx))

		n, err := redisDB.CountSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("redis failure is reported", func(t *testing.T) {
		mr := testutil.SetupMiniRedis(t)
		redisDB := testutil.NewTestRedisDB(t, mr)
		mr.Close()

		s, err := NewScheduler(testJobsConfig(), nil, redisDB, nil)
		require.NoError(t, err)
		assert.Error(t, s.RefreshGauges(context.Background()))
	})

	t.Run("connections only", func(t *testing.T) {
		s, err := NewScheduler(testJobsConfig(), nil, nil, fixedConnections(1))
		require.NoError(t, err)
		assert.NoError(t, s.RefreshGauges(context.Background()))
	})
}

var _ SessionCounter = (*database.RedisDB)(nil)

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := NewScheduler(testJobsConfig(), new(mockExpiry), nil, fixedConnections(0))
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

type mockDiscoverer struct {
	mock.Mock
}

func (m *mockDiscoverer) Discover(ctx context.Context, count int) (models.DiscoveryResult, error) {
	args := m.Called(ctx, count)
	return args.Get(0).(models.DiscoveryResult), args.Error(1)
}

func TestDiscoverScholarships(t *testing.T) {
	cfg := testJobsConfig()
	cfg.DiscoverySchedule = "*/10 * * * *"
	cfg.DiscoveryCount = 5

	t.Run("registers and runs with the configured count", func(t *testing.T) {
		discoverer := new(mockDiscoverer)
		discoverer.On("Discover", mock.Anything, 5).Return(models.DiscoveryResult{Discovered: 5, Saved: 3, Duplicates: 2}, nil)

		s, err := NewScheduler(cfg, nil, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.AddDiscovery(discoverer))
		assert.Equal(t, 1, s.Jobs())

		assert.NoError(t, s.DiscoverScholarships(context.Background()))
		discoverer.AssertExpectations(t)
	})

	t.Run("propagates failure", func(t *testing.T) {
		discoverer := new(mockDiscoverer)
		discoverer.On("Discover", mock.Anything, 5).Return(models.DiscoveryResult{}, errors.New("llm service down"))

		s, err := NewScheduler(cfg, nil, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.AddDiscovery(discoverer))

		assert.Error(t, s.DiscoverScholarships(context.Background()))
	})

	t.Run("rejects bad spec", func(t *testing.T) {
		bad := cfg
		bad.DiscoverySchedule = "whenever"

		s, err := NewScheduler(bad, nil, nil, nil)
		require.NoError(t, err)

		err = s.AddDiscovery(new(mockDiscoverer))
		require.Error(t, err)
		assert.Contains(t, err.Error(), JobDiscoverScholarships)
	})
}
