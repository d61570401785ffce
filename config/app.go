// Package config 站点配置信息
package config

import "studysphere/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			// 应用名称
			"name": config.Env("APP_NAME", "StudySphere"),

			// 当前环境，用以区分多环境，一般为 local, stage, production, testing
			"env": config.Env("APP_ENV", "production"),

			// 是否进入调试模式
			"debug": config.Env("APP_DEBUG", false),

			// 应用服务端口
			"port": config.Env("APP_PORT", "3000"),

			// 设置时区，日志记录里会使用到
			"timezone": config.Env("TIMEZONE", "Africa/Nairobi"),

			// 限流格式为 "次数-单位"
			"api_rate_limit":     config.Env("API_RATE_LIMIT", "3000-H"),
			"payment_rate_limit": config.Env("PAYMENT_RATE_LIMIT", "10-M"), // 每个用户每分钟最多发起 10 次支付
		}
	})
}
