// Package limiter 处理限流逻辑
package limiter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"studysphere/pkg/redis"
)

// Rate 定义限流速率
type Rate struct {
	Rate float64
}

// ParseLimit 解析限流配置字符串
// 支持的格式: "5-S"、"10-M"、"1000-H"、"2000-D"
func ParseLimit(limit string) (*Rate, error) {
	parts := strings.Split(limit, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid limit format: %s", limit)
	}

	if _, err := limiterlib.NewRateFromFormatted(parts[0] + "-" + strings.ToUpper(parts[1])); err != nil {
		return nil, fmt.Errorf("invalid limit format: %w", err)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate value: %s", parts[0])
	}

	// 根据时间单位转换为每秒的速率
	var ratePerSecond float64
	switch strings.ToUpper(parts[1]) {
	case "S":
		ratePerSecond = value
	case "M":
		ratePerSecond = value / 60.0
	case "H":
		ratePerSecond = value / 3600.0
	case "D":
		ratePerSecond = value / 86400.0
	default:
		return nil, fmt.Errorf("invalid time unit: %s", parts[1])
	}

	return &Rate{Rate: ratePerSecond}, nil
}

// NewRedisStore 使用 Redis 主实例作为限流计数存储，多实例部署时共享额度
func NewRedisStore(client *redis.RedisClient, prefix string) (limiterlib.Store, error) {
	return sredis.NewStoreWithOptions(client.Client, limiterlib.StoreOptions{
		Prefix: prefix + ":limiter",
	})
}

// NewMemoryStore 进程内存储，Redis 不可用或测试时使用
func NewMemoryStore(prefix string) limiterlib.Store {
	return memory.NewStoreWithOptions(limiterlib.StoreOptions{
		Prefix: prefix + ":limiter",
	})
}

// GetKeyIP 获取 Limitor 的 Key，IP
func GetKeyIP(c *gin.Context) string {
	return c.ClientIP()
}

// GetKeyRouteWithIP Limitor 的 Key，路由+IP，针对单个路由做限流
func GetKeyRouteWithIP(c *gin.Context) string {
	return routeToKeyString(c.FullPath()) + c.ClientIP()
}

// GetKeyRouteWithUser 路由+用户，针对单个用户做限流
func GetKeyRouteWithUser(c *gin.Context, userID string) string {
	return routeToKeyString(c.FullPath()) + "user:" + userID
}

// CheckRate 检测请求是否超额
// formatted 与 ParseLimit 的格式一致，例如 "10-M"
func CheckRate(c *gin.Context, store limiterlib.Store, key string, formatted string) (limiterlib.Context, error) {
	var context limiterlib.Context
	rate, err := limiterlib.NewRateFromFormatted(formatted)
	if err != nil {
		return context, err
	}

	limiterObj := limiterlib.New(store, rate)

	// 同一请求多次经过限流中间件时，只增加一次访问次数
	if c.GetBool("limiter-once:" + key) {
		return limiterObj.Peek(c.Request.Context(), key)
	}
	c.Set("limiter-once:"+key, true)

	return limiterObj.Get(c.Request.Context(), key)
}

// routeToKeyString 辅助方法，将 URL 中的 / 格式为 -
func routeToKeyString(routeName string) string {
	routeName = strings.ReplaceAll(routeName, "/", "-")
	routeName = strings.ReplaceAll(routeName, ":", "_")
	return routeName
}
