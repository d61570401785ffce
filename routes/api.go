// Package routes 注册路由
package routes

import (
	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"

	"studysphere/app/http/controllers/api/v1/payment"
	"studysphere/app/http/middlewares"
	"studysphere/pkg/auth"
)

// 路由限流配置
const (
	// 查询状态：轮询每 5 秒一次，每用户每分钟 60 次足够
	StatusRateLimit = "60-M"
)

// Dependencies 路由依赖
type Dependencies struct {
	Controller       *payment.PaymentController
	Resolver         auth.Resolver
	LimiterStore     limiterlib.Store
	IPLimiter        *middlewares.IPLimiter // 为 nil 时不做 IP 限流
	PaymentRateLimit string                 // 每个用户发起支付的频率
}

// RegisterAPIRoutes 注册所有 API 路由
// CORS 需要注册在 engine 上，预检请求匹配不到路由组
func RegisterAPIRoutes(r *gin.Engine, deps Dependencies) {
	if deps.PaymentRateLimit == "" {
		deps.PaymentRateLimit = "10-M"
	}

	v1 := r.Group("/v1")
	v1.Use(
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(deps.IPLimiter),
	)

	pc := deps.Controller

	v1.GET("/health", pc.Health)
	v1.GET("/plans", pc.Plans)

	paymentRoutes := v1.Group("/payments", middlewares.Authenticate(deps.Resolver))
	{
		// 发起支付 POST /v1/payments
		paymentRoutes.POST("",
			middlewares.LimitPerUser(deps.LimiterStore, deps.PaymentRateLimit),
			pc.Store,
		)

		// 支付记录 GET /v1/payments
		paymentRoutes.GET("", pc.Index)

		// 查询状态，兼容前端的 {payment_id} 请求体
		paymentRoutes.POST("/verify",
			middlewares.LimitPerUser(deps.LimiterStore, StatusRateLimit),
			pc.Verify,
		)
		paymentRoutes.GET("/:reference/status",
			middlewares.LimitPerUser(deps.LimiterStore, StatusRateLimit),
			pc.Status,
		)

		// 轮询放弃后的复查 POST /v1/payments/:reference/recheck
		paymentRoutes.POST("/:reference/recheck",
			middlewares.LimitPerUser(deps.LimiterStore, deps.PaymentRateLimit),
			pc.Recheck,
		)
	}
}
