package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/posture/internal/config"
	"github.com/sells-group/posture/internal/model"
)

func sampleMatrix(t *testing.T, id string) *Matrix {
	t.Helper()
	gaps := []model.Gap{
		{ID: "g1", AssessmentID: id, PriorityScore: 9, Category: "logging", EstimatedEffort: model.EffortSmall, EstimatedCost: model.CostUnder10K},
		{ID: "g2", AssessmentID: id, PriorityScore: 5, Category: "backup"},
	}
	vendors := []model.Vendor{{ID: "v1", Name: "Logs Inc", Categories: []string{"logging"}}}
	m, err := Build(id, gaps, vendors, config.DefaultStrategy())
	require.NoError(t, err)
	return m
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	m := sampleMatrix(t, "asm-1")

	_, ok, err := c.Get(ctx, "asm-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, m))
	got, ok, err := c.Get(ctx, "asm-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m, got)

	// Mutating the returned copy does not affect the cache.
	got.Immediate.GapCount = 99
	again, _, err := c.Get(ctx, "asm-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Immediate.GapCount)

	require.NoError(t, c.Delete(ctx, "asm-1"))
	_, ok, _ = c.Get(ctx, "asm-1")
	assert.False(t, ok)
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, sampleMatrix(t, "asm-1")))
	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "asm-1")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "asm-1")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	require.NoError(t, c.Set(ctx, sampleMatrix(t, "a")))
	require.NoError(t, c.Set(ctx, sampleMatrix(t, "b")))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c Cache = NopCache{}
	require.NoError(t, c.Set(ctx, sampleMatrix(t, "a")))
	_, ok, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl, ""), mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)
	require.NoError(t, c.Ping(ctx))

	m := sampleMatrix(t, "asm-1")
	require.NoError(t, c.Set(ctx, m))
	assert.True(t, mr.Exists("posture:matrix:asm-1"))
	assert.Equal(t, time.Hour, mr.TTL("posture:matrix:asm-1"))

	got, ok, err := c.Get(ctx, "asm-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m, got)

	require.NoError(t, c.Delete(ctx, "asm-1"))
	_, ok, err = c.Get(ctx, "asm-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Minute)
	require.NoError(t, c.Set(ctx, sampleMatrix(t, "asm-1")))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "asm-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 0)
	require.NoError(t, mr.Set("session:1", "keep"))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, sampleMatrix(t, id)))
	}

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("posture:matrix:a"))
	assert.False(t, mr.Exists("posture:matrix:c"))
	assert.True(t, mr.Exists("session:1"))
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, 0)
	require.NoError(t, mr.Set("posture:matrix:bad", "{not json"))
	_, ok, err := c.Get(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}
