package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient(RedisConfig{Address: mr.Addr(), MinIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type cached struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func TestJSONRoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetJSON(ctx, "auth:principal:abc", cached{UserID: "u1", Email: "a@b.co"}, time.Minute))

	var got cached
	require.NoError(t, client.GetJSON(ctx, "auth:principal:abc", &got))
	assert.Equal(t, cached{UserID: "u1", Email: "a@b.co"}, got)
	assert.Equal(t, time.Minute, mr.TTL("auth:principal:abc"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, client.GetJSON(ctx, "auth:principal:abc", &got), ErrCacheMiss)
}

func TestGetJSONMiss(t *testing.T) {
	client, _ := newTestClient(t)

	var got cached
	assert.ErrorIs(t, client.GetJSON(context.Background(), "missing", &got), ErrCacheMiss)
}

func TestSetNXAndDel(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "lock", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "lock", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, client.Del(ctx, "lock"))
	assert.False(t, mr.Exists("lock"))
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(RedisConfig{Address: addr, Timeout: time.Second})
	assert.Error(t, err)
}
