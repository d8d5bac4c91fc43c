package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	Names []string `json:"names"`
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", catalog{Names: []string{"a"}}, time.Minute))

	var got catalog
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, []string{"a"}, got.Names)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))

	var v int
	assert.ErrorIs(t, c.Get(ctx, "a", &v), ErrMiss)
	assert.ErrorIs(t, c.Get(ctx, "b", &v), ErrMiss)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"x"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, c, "list", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, got)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, c, "other", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "other", &v), ErrMiss, "failed loads must not be cached")
}

func TestRedisIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, Prefix: "revibes-test:"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Set(ctx, "catalog", catalog{Names: []string{"a", "b"}}, time.Minute))
	var got catalog
	require.NoError(t, r.Get(ctx, "catalog", &got))
	assert.Len(t, got.Names, 2)

	require.NoError(t, r.Delete(ctx, "catalog"))
	assert.ErrorIs(t, r.Get(ctx, "catalog", &got), ErrMiss)
}
