package bootstrap

import (
	"time"

	model "studysphere/app/models/payment"
	"studysphere/app/repositories"
	"studysphere/pkg/auth"
	"studysphere/pkg/config"
	"studysphere/pkg/database"
	"studysphere/pkg/logger"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/factory"
	"studysphere/pkg/redis"
)

// Services 支付相关服务
type Services struct {
	Repository     *repositories.PaymentRepository
	Initiation     *payment.InitiationService
	Reconciliation *payment.ReconciliationService
}

// SetupPayment 根据 payment.provider 创建网关和服务
func SetupPayment() (*Services, error) {
	provider := model.Provider(config.GetString("payment.provider"))
	gateway, err := factory.NewGateway(provider)
	if err != nil {
		return nil, err
	}

	repo := repositories.NewPaymentRepository(database.DB)

	logger.InfoString("Payment", "Setup", "支付渠道: "+string(gateway.Name()))

	return &Services{
		Repository: repo,
		Initiation: payment.NewInitiationService(gateway, repo, payment.InitiationConfig{
			Currency: config.GetString("payment.currency"),
			Method:   config.GetString("payment.method"),
		}),
		Reconciliation: payment.NewReconciliationService(gateway, repo),
	}, nil
}

// SetupAuth 创建 Supabase 用户解析器，Redis 可用时缓存用户信息
func SetupAuth() auth.Resolver {
	var cache auth.Cache
	if client := redis.GetRedis(redis.MainDB); client != nil {
		cache = client
	}

	return auth.NewSupabaseResolver(auth.SupabaseConfig{
		URL:      config.GetString("auth.supabase_url"),
		AnonKey:  config.GetString("auth.supabase_anon_key"),
		Timeout:  time.Duration(config.GetInt("auth.timeout")) * time.Second,
		CacheTTL: time.Duration(config.GetInt("auth.cache_ttl")) * time.Second,
	}, cache)
}
