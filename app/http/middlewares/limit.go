package middlewares

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	limiterlib "github.com/ulule/limiter/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"studysphere/pkg/app"
	"studysphere/pkg/limiter"
	"studysphere/pkg/logger"
	"studysphere/pkg/response"
)

const (
	// DefaultBurst 默认突发请求数量
	DefaultBurst = 100
)

// IPLimiter 进程内按 IP 的令牌桶，后台定期清理长时间未访问的 IP
//
// 支持的限流格式:
// - 5 reqs/second:   "5-S"
// - 10 reqs/minute:  "10-M"
// - 1000 reqs/hour:  "1000-H"
// - 2000 reqs/day:   "2000-D"
type IPLimiter struct {
	rate       rate.Limit
	limiters   sync.Map
	lastAccess sync.Map

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewIPLimiter 创建 IP 限流器并启动清理协程，使用完需要 Stop
func NewIPLimiter(limit string) (*IPLimiter, error) {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	r, err := limiter.ParseLimit(limit)
	if err != nil {
		return nil, err
	}

	l := &IPLimiter{
		rate:     rate.Limit(r.Rate),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.cleanup(time.Hour, 24*time.Hour)
	return l, nil
}

// Stop 停止清理协程，可重复调用
func (l *IPLimiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stopChan) })
	<-l.done
}

// LimitIP 全局限流中间件，l 为 nil 时不限流
func LimitIP(l *IPLimiter) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		lim := l.get(limiter.GetKeyIP(c), time.Now())

		if !lim.Allow() {
			response.Abort429(c)
			return
		}

		c.Header("X-RateLimit-Limit", cast.ToString(float64(lim.Limit())))
		c.Header("X-RateLimit-Remaining", cast.ToString(int(lim.Tokens())))
		c.Next()
	}
}

// LimitPerUser 按用户和路由限流，计数存储在 store 中
// 需要放在 Authenticate 之后
func LimitPerUser(store limiterlib.Store, limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		key := limiter.GetKeyRouteWithIP(c)
		if ok {
			key = limiter.GetKeyRouteWithUser(c, principal.UserID)
		}

		res, err := limiter.CheckRate(c, store, key, limit)
		if err != nil {
			// 存储不可用时放行
			logger.Warn("Limiter", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", cast.ToString(res.Limit))
		c.Header("X-RateLimit-Remaining", cast.ToString(res.Remaining))
		c.Header("X-RateLimit-Reset", cast.ToString(res.Reset))

		if res.Reached {
			c.Header("Retry-After", cast.ToString(retryAfter(res.Reset)))
			response.Abort429(c)
			return
		}

		c.Next()
	}
}

func (l *IPLimiter) get(key string, now time.Time) *rate.Limiter {
	l.lastAccess.Store(key, now)
	if lim, ok := l.limiters.Load(key); ok {
		return lim.(*rate.Limiter)
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, DefaultBurst))
	return actual.(*rate.Limiter)
}

func (l *IPLimiter) cleanup(every, idle time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.prune(now, idle)
		case <-l.stopChan:
			return
		}
	}
}

// prune 删除超过 idle 未访问的限流器
func (l *IPLimiter) prune(now time.Time, idle time.Duration) {
	l.lastAccess.Range(func(key, value interface{}) bool {
		if now.Sub(value.(time.Time)) > idle {
			l.limiters.Delete(key)
			l.lastAccess.Delete(key)
		}
		return true
	})
}

func retryAfter(reset int64) int64 {
	secs := reset - time.Now().Unix()
	if secs < 1 {
		return 1
	}
	return secs
}
