package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
)

func TestTryLock_Disabled(t *testing.T) {
	r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())
	assert.False(t, r.Enabled())

	_, acquired, err := r.TryLock(context.Background(), "sweep", time.Second)
	assert.Error(t, err)
	assert.False(t, acquired)
}

func TestTryLock_ExclusiveUntilReleased(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := NewRedis(ctx, config.RedisConfig{Addr: addr}, zap.NewNop())
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	key := "test:lock:" + uuid.NewString()
	release, acquired, err := r.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, again, err := r.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, again, "second holder is refused")

	require.NoError(t, release(ctx))
	release2, reacquired, err := r.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, reacquired)

	require.NoError(t, release(ctx), "stale release keeps the new holder's lock")
	_, stolen, err := r.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, stolen)
	require.NoError(t, release2(ctx))
}
