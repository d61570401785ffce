package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	limiterlib "github.com/ulule/limiter/v3"

	"studysphere/pkg/redis"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		limit string
		want  float64
	}{
		{"5-S", 5},
		{"60-M", 1},
		{"3600-H", 1},
		{"86400-D", 1},
		{"10-m", 10.0 / 60.0},
	}

	for _, tt := range tests {
		t.Run(tt.limit, func(t *testing.T) {
			r, err := ParseLimit(tt.limit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, r.Rate, 1e-9)
		})
	}

	for _, bad := range []string{"", "10", "abc-S", "10-X", "1-2-3"} {
		_, err := ParseLimit(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckRate(t *testing.T) {
	assertTwoPerMinute(t, NewMemoryStore("test"))
}

func TestCheckRateRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.RedisConfig{Address: mr.Addr(), MinIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "test")
	require.NoError(t, err)

	assertTwoPerMinute(t, store)
	assert.True(t, mr.Exists("test:limiter:user:u1"))

	// 窗口过期后额度恢复
	mr.FastForward(2 * time.Minute)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
	res, err := CheckRate(c, store, "user:u1", "2-M")
	require.NoError(t, err)
	assert.False(t, res.Reached)
}

func assertTwoPerMinute(t *testing.T, store limiterlib.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hit := func() (bool, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
		res, err := CheckRate(c, store, "user:u1", "2-M")
		return res.Reached, err
	}

	reached, err := hit()
	require.NoError(t, err)
	assert.False(t, reached)

	reached, _ = hit()
	assert.False(t, reached)

	reached, _ = hit()
	assert.True(t, reached)
}

func TestRouteKeys(t *testing.T) {
	assert.Equal(t, "-v1-payments-_reference", routeToKeyString("/v1/payments/:reference"))
}
