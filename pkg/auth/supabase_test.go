package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studysphere/pkg/redis"
)

type memoryCache struct {
	data map[string][]byte
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func newSupabaseServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-1","email":"student@example.com","phone":"254712345678"}`))
	}))
}

func TestSupabaseResolver_Resolve(t *testing.T) {
	calls := 0
	srv := newSupabaseServer(t, &calls)
	defer srv.Close()

	r := NewSupabaseResolver(SupabaseConfig{URL: srv.URL + "/", AnonKey: "anon"}, nil)

	p, err := r.Resolve(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "user-1", Email: "student@example.com", Phone: "254712345678"}, p)

	_, err = r.Resolve(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 2, calls)
}

func TestSupabaseResolver_UsesCache(t *testing.T) {
	calls := 0
	srv := newSupabaseServer(t, &calls)
	defer srv.Close()

	cache := &memoryCache{data: map[string][]byte{}}
	r := NewSupabaseResolver(SupabaseConfig{URL: srv.URL, AnonKey: "anon", CacheTTL: time.Minute}, cache)

	for i := 0; i < 3; i++ {
		p, err := r.Resolve(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
	}
	assert.Equal(t, 1, calls)

	for key := range cache.data {
		assert.NotContains(t, key, "good-token")
	}
}

func TestSupabaseResolver_RedisCache(t *testing.T) {
	calls := 0
	srv := newSupabaseServer(t, &calls)
	defer srv.Close()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.RedisConfig{Address: mr.Addr(), MinIdleConns: 1})
	require.NoError(t, err)
	defer client.Close()

	cfg := SupabaseConfig{URL: srv.URL, AnonKey: "anon", CacheTTL: time.Minute}
	want := Principal{UserID: "user-1", Email: "student@example.com", Phone: "254712345678"}

	p, err := NewSupabaseResolver(cfg, client).Resolve(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, want, p)

	key := cacheKey("good-token")
	require.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// 新的解析器实例直接命中 Redis
	p, err = NewSupabaseResolver(cfg, client).Resolve(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, want, p)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	_, err = NewSupabaseResolver(cfg, client).Resolve(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u"})
	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u", p.UserID)

	_, ok = FromContext(WithPrincipal(context.Background(), Principal{}))
	assert.False(t, ok)
}
