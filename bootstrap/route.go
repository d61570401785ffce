package bootstrap

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"

	"studysphere/app/http/controllers/api/v1/payment"
	"studysphere/app/http/middlewares"
	"studysphere/pkg/config"
	"studysphere/pkg/database"
	"studysphere/pkg/limiter"
	"studysphere/pkg/logger"
	"studysphere/pkg/redis"
	"studysphere/pkg/response"
	"studysphere/routes"
)

// SetupRoute 路由初始化
// 1. 注册全局中间件
// 2. 注册 API 路由
// 3. 配置 404 处理器
func SetupRoute(router *gin.Engine, services *Services, background *Background, ipLimiter *middlewares.IPLimiter) {
	registerGlobalMiddleWare(router)

	opts := payment.Options{
		Initiator:  services.Initiation,
		Reconciler: services.Reconciliation,
		Records:    services.Repository,
		Checks: map[string]payment.HealthCheck{
			"database": database.Ping,
		},
	}
	if client := redis.GetRedis(redis.MainDB); client != nil {
		opts.Checks["redis"] = client.Ping
	}
	if background != nil {
		opts.Queue = background.Queue
		opts.Metrics = background.Queue.Metrics()
		opts.Checks["queue"] = background.Queue.Ping
	}

	routes.RegisterAPIRoutes(router, routes.Dependencies{
		Controller:       payment.NewPaymentController(opts),
		Resolver:         SetupAuth(),
		LimiterStore:     limiterStore(),
		IPLimiter:        ipLimiter,
		PaymentRateLimit: config.GetString("app.payment_rate_limit"),
	})

	setup404Handler(router)
}

// registerGlobalMiddleWare 注册全局中间件
func registerGlobalMiddleWare(router *gin.Engine) {
	router.Use(
		middlewares.Logger(),
		middlewares.Recovery(),
		middlewares.Cors(),
	)
}

// SetupIPLimiter 全局 IP 限流，配置错误时不限流
func SetupIPLimiter() *middlewares.IPLimiter {
	l, err := middlewares.NewIPLimiter(config.GetString("app.api_rate_limit"))
	if err != nil {
		logger.ErrorString("Limiter", "LimitIP", err.Error())
		return nil
	}
	return l
}

// limiterStore Redis 不可用时使用进程内存储
func limiterStore() limiterlib.Store {
	prefix := config.GetString("app.name")
	if client := redis.GetRedis(redis.MainDB); client != nil {
		store, err := limiter.NewRedisStore(client, prefix)
		if err == nil {
			return store
		}
		logger.WarnString("Limiter", "Setup", err.Error())
	}
	return limiter.NewMemoryStore(prefix)
}

// setup404Handler 配置 404 请求处理器
func setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		if strings.Contains(c.Request.Header.Get("Accept"), "text/html") {
			c.String(http.StatusNotFound, "页面返回 404")
			return
		}
		response.Abort404(c, "route not found, check the url and request method")
	})
}
