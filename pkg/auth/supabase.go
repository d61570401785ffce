package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"studysphere/pkg/logger"
)

// Cache 用户信息缓存
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// SupabaseConfig Supabase Auth 配置
type SupabaseConfig struct {
	URL      string
	AnonKey  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// SupabaseResolver 通过 Supabase Auth REST 接口解析用户
type SupabaseResolver struct {
	client   *resty.Client
	baseURL  string
	anonKey  string
	cache    Cache
	cacheTTL time.Duration
}

// supabaseUser GET /auth/v1/user 的返回
type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// NewSupabaseResolver 创建解析器，cache 可以为 nil
func NewSupabaseResolver(cfg SupabaseConfig, cache Cache) *SupabaseResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &SupabaseResolver{
		client:   resty.New().SetTimeout(cfg.Timeout),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		anonKey:  cfg.AnonKey,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
	}
}

// Resolve 解析 token 对应的用户
func (r *SupabaseResolver) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}

	key := cacheKey(token)
	if r.cache != nil && r.cacheTTL > 0 {
		var cached Principal
		if err := r.cache.GetJSON(ctx, key, &cached); err == nil && cached.Authenticated() {
			return cached, nil
		}
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("apikey", r.anonKey).
		SetAuthToken(token).
		Get(r.baseURL + "/auth/v1/user")
	if err != nil {
		return Principal{}, fmt.Errorf("call supabase auth: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return Principal{}, ErrUnauthenticated
	}
	if resp.StatusCode() != http.StatusOK {
		return Principal{}, fmt.Errorf("supabase auth returned status %d", resp.StatusCode())
	}

	var user supabaseUser
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return Principal{}, fmt.Errorf("decode supabase user: %w", err)
	}
	if user.ID == "" {
		return Principal{}, ErrUnauthenticated
	}

	p := Principal{UserID: user.ID, Email: user.Email, Phone: user.Phone}

	if r.cache != nil && r.cacheTTL > 0 {
		if err := r.cache.SetJSON(ctx, key, p, r.cacheTTL); err != nil {
			logger.WarnString("Auth", "Cache", err.Error())
		}
	}

	return p, nil
}

// cacheKey token 不直接落到 Redis 中
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:principal:" + hex.EncodeToString(sum[:])
}
