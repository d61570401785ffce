package config

import "studysphere/pkg/config"

func init() {
	config.Add("queue", func() map[string]interface{} {
		return map[string]interface{}{
			// 入队限流（每秒）
			"rate_limit": config.Env("QUEUE_RATE_LIMIT", 20),
			"rate_burst": config.Env("QUEUE_RATE_BURST", 50),

			// 对账 worker 数量
			"worker_count": config.Env("QUEUE_WORKER_COUNT", 4),

			// 单次对账的超时时间（秒）
			"task_timeout": config.Env("QUEUE_TASK_TIMEOUT", 20),

			// 扫描未终结支付的间隔（秒），以及支付创建多久之后才进入扫描（秒）
			"sweep_interval":  config.Env("QUEUE_SWEEP_INTERVAL", 60),
			"sweep_stale_age": config.Env("QUEUE_SWEEP_STALE_AGE", 120),
			"sweep_batch":     config.Env("QUEUE_SWEEP_BATCH", 100),

			// 同一支付在队列中的去重时间（秒）
			"dedupe_ttl": config.Env("QUEUE_DEDUPE_TTL", 60),
		}
	})
}
