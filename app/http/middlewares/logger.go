package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studysphere/pkg/logger"
)

// Logger 记录请求日志
// 请求体可能包含手机号，这里只记录路径和耗时
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		cost := time.Since(start)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.String("time", cost.String()),
		}

		switch {
		case status >= 500:
			logger.Error("HTTP Error "+c.Request.Method, fields...)
		case status >= 400:
			logger.Warn("HTTP Warning "+c.Request.Method, fields...)
		default:
			logger.Debug("HTTP Access Log", fields...)
		}
	}
}
