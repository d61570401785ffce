// Package app 提供应用程序相关的辅助函数
package app

import (
	"time"

	"studysphere/pkg/config"
)

// IsProduction 判断当前是否运行在生产环境
func IsProduction() bool {
	return config.Get("app.env") == "production"
}

// IsTesting 判断当前是否运行在测试环境
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// Seconds 将配置中的秒数转换为 time.Duration
func Seconds(path string, defaultValue int) time.Duration {
	return time.Duration(config.GetInt(path, defaultValue)) * time.Second
}
