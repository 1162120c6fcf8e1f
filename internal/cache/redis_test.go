package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rc, err := NewRedisCache(ctx, Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestRedisCache(t *testing.T) {
	rc := setupRedis(t)
	ctx := context.Background()

	_, err := rc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, rc.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))
	v, err := rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v))

	n, err := rc.Incr(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = rc.Incr(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, rc.Delete(ctx, "k"))
	_, err = rc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, rc.Health(ctx))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
