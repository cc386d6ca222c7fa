package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Second))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	fakeNow = fakeNow.Add(11 * time.Second)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_IncrementStartsAtZero(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	n, err := c.Increment(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestMemory_GetTTLReportsRemaining(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	require.NoError(t, c.Set(ctx, "k", "v", 30*time.Second))
	ttl, ok, err := c.GetTTL(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 30*time.Second, ttl, float64(time.Second))

	_, ok, err = c.GetTTL(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_NoExpiryWhenTTLZero(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	ttl, ok, err := c.GetTTL(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Duration(0), ttl)
}
