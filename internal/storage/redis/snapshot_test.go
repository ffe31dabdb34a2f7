package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/sampler"
)

// 需要 Redis；连不上时跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(cfgpkg.RedisConfig{Enabled: true, Addr: addr, DB: 15, DialTimeout: time.Second})
	if err != nil {
		t.Skipf("Redis 不可用，跳过测试: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClientDisabled(t *testing.T) {
	_, err := NewClient(cfgpkg.RedisConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSnapshotCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	const dev = "redis-test"
	t.Cleanup(func() { c.Del(ctx, "eload:snapshot:"+dev, "eload:history:"+dev) })

	cache := NewSnapshotCache(c, time.Minute)
	_, err := cache.Latest(ctx, dev)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	runID := uuid.New()
	for i := 1; i <= 3; i++ {
		require.NoError(t, cache.StoreReading(ctx, sampler.Reading{
			RunID:    runID,
			Snapshot: device.Snapshot{Device: dev, Voltage: float64(i), TakenAt: time.Now()},
		}))
	}

	latest, err := cache.Latest(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, runID, latest.RunID)
	assert.Equal(t, 3.0, latest.Voltage)

	hist, err := cache.History(ctx, dev, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 3.0, hist[0].Voltage)
	assert.Equal(t, 2.0, hist[1].Voltage)

	ttl, err := c.TTL(ctx, "eload:snapshot:"+dev).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
