package middlewares

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studysphere/pkg/auth"
	"studysphere/pkg/logger"
	"studysphere/pkg/response"
)

const principalKey = "principal"

// Authenticate 解析 Bearer token，失败时返回 400
func Authenticate(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort400(c, auth.ErrUnauthenticated.Error())
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil || !principal.Authenticated() {
			if err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
				logger.Warn("Auth", zap.String("event", "resolve_failed"), zap.Error(err))
			}
			response.Abort400(c, auth.ErrUnauthenticated.Error())
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// CurrentPrincipal 取出当前请求的调用方
func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok && p.Authenticated()
}
