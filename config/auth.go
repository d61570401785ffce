package config

import (
	"studysphere/pkg/config"
)

func init() {
	config.Add("auth", func() map[string]interface{} {
		return map[string]interface{}{
			// Supabase 项目地址与匿名 key，用于解析用户 token
			"supabase_url":      config.Env("SUPABASE_URL", ""),
			"supabase_anon_key": config.Env("SUPABASE_ANON_KEY", ""),

			// 用户信息缓存时间（秒），0 表示不缓存
			"cache_ttl": config.Env("AUTH_CACHE_TTL", 60),
			"timeout":   config.Env("AUTH_TIMEOUT", 10),
		}
	})
}
