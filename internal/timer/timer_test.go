package timer_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mockprep/backend/internal/timer"
)

// startRedis boots a throwaway Redis container for the test.
func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newManager(ctx context.Context, t *testing.T) (*timer.Manager, *redis.Client) {
	rdb := startRedis(ctx, t)
	return timer.NewManager(rdb, zerolog.Nop()), rdb
}

func TestTimerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	m, _ := newManager(ctx, t)

	const attemptID = int64(42)

	require.NoError(t, m.CreateTimer(ctx, attemptID, time.Hour))

	r, err := m.Remaining(ctx, attemptID)
	require.NoError(t, err)
	require.Equal(t, timer.StateRunning, r.State)
	require.Greater(t, r.Seconds, int64(0))
	require.LessOrEqual(t, r.Seconds, int64(3600))

	expired, err := m.IsExpired(ctx, attemptID)
	require.NoError(t, err)
	require.False(t, expired)

	deleted, err := m.DeleteTimer(ctx, attemptID)
	require.NoError(t, err)
	require.True(t, deleted)

	r, err = m.Remaining(ctx, attemptID)
	require.NoError(t, err)
	require.Equal(t, timer.StateExpired, r.State)

	// Deleting an already-gone timer is not an error.
	deleted, err = m.DeleteTimer(ctx, attemptID)
	require.NoError(t, err)
	require.False(t, deleted)

	expired, err = m.IsExpired(ctx, attemptID)
	require.NoError(t, err)
	require.True(t, expired)
}

func TestRemainingAfterStoreExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	m, _ := newManager(ctx, t)

	require.NoError(t, m.CreateTimer(ctx, 7, time.Second))
	time.Sleep(1100 * time.Millisecond)

	r, err := m.Remaining(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, timer.StateExpired, r.State)
}

func TestRemainingCorruptedKey(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	m, rdb := newManager(ctx, t)

	// A timer key without TTL can only come from operator error; the manager
	// must classify it as corrupted, not running and not expired.
	require.NoError(t, rdb.Set(ctx, timer.Key(9), 3600, 0).Err())

	r, err := m.Remaining(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, timer.StateCorrupted, r.State)

	expired, err := m.IsExpired(ctx, 9)
	require.NoError(t, err)
	require.False(t, expired)
}

func TestExtendTimer(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	m, rdb := newManager(ctx, t)

	require.NoError(t, m.CreateTimer(ctx, 11, time.Minute))
	require.NoError(t, m.ExtendTimer(ctx, 11, 30*time.Second))

	r, err := m.Remaining(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, timer.StateRunning, r.State)
	require.Greater(t, r.Seconds, int64(60))
	require.LessOrEqual(t, r.Seconds, int64(90))

	// Extending an expired timer fails and must not create a new key.
	err = m.ExtendTimer(ctx, 12, 10*time.Minute)
	require.ErrorIs(t, err, timer.ErrTimerGone)

	exists, err := rdb.Exists(ctx, timer.Key(12)).Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}

func TestTransportFailureIsNotExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	rdb := startRedis(ctx, t)
	m := timer.NewManager(rdb, zerolog.Nop())
	require.NoError(t, m.CreateTimer(ctx, 21, time.Hour))

	// Sever the connection: reads must surface an error, never Expired.
	require.NoError(t, rdb.Close())

	_, err := m.Remaining(ctx, 21)
	require.Error(t, err)

	_, err = m.IsExpired(ctx, 21)
	require.Error(t, err)
}
