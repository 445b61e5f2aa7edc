package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), mr
}

func TestCache_ClaimOnce(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := t.Context()

	ok, err := c.Claim(ctx, "stripe:event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, "stripe:event:evt_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Hour, mr.TTL("stripe:event:evt_1"))
}

func TestCache_ReleaseAllowsReclaim(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := t.Context()

	_, err := c.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Release(ctx, "k"))

	ok, err := c.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_ClaimExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := t.Context()

	_, err := c.Claim(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	ok, err := c.Claim(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_Ping(t *testing.T) {
	c, _ := newTestCache(t)
	assert.NoError(t, c.Ping(t.Context()))
}
