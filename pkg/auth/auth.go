// Package auth 解析调用方身份
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated 缺少或无效的用户凭证
var ErrUnauthenticated = errors.New("user not authenticated")

// Principal 已认证的调用方
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// Authenticated 是否为有效的调用方
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Resolver 根据 token 查询用户信息，只读
type Resolver interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

type principalKey struct{}

// WithPrincipal 将调用方写入 context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext 从 context 中取出调用方
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Authenticated()
}

// BearerToken 从 Authorization 头中提取 token
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
