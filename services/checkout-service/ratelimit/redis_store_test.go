package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := New(NewRedisStore(client, "test:"), 10, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(11), d.Count)

	ttl := mr.TTL("test:198.51.100.1")
	assert.True(t, ttl > 0 && ttl <= 15*time.Minute)

	mr.FastForward(15*time.Minute + time.Second)

	d, err = l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
}

func TestRedisStoreErrorIsReturned(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	d, err := New(NewRedisStore(client, ""), 10, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}
