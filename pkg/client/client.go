// Package client StudySphere 支付接口的 Go 客户端
// 实现 poller.Initiator 与 poller.Checker，供命令行工具驱动轮询
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment/types"
)

// Config 客户端配置
type Config struct {
	BaseURL string
	Token   string // Supabase 用户 access token
	Timeout time.Duration
}

// Client 支付接口客户端
type Client struct {
	http *resty.Client
}

// APIError 接口返回的失败响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// New 创建客户端
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.Token).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Initiate 发起支付
func (c *Client) Initiate(ctx context.Context, req *types.Request) (*types.Initiation, error) {
	body := map[string]interface{}{
		"amount":       req.Amount.InexactFloat64(),
		"currency":     req.Currency,
		"phone_number": req.PhoneNumber,
		"email":        req.Email,
		"method":       req.Method,
	}

	var result types.Initiation
	if err := c.do(ctx, http.MethodPost, "/v1/payments", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Check 查询一次支付状态
func (c *Client) Check(ctx context.Context, reference string) (model.Status, error) {
	var result struct {
		State  string       `json:"state"`
		Status model.Status `json:"status"`
	}
	body := map[string]string{"payment_id": reference}
	if err := c.do(ctx, http.MethodPost, "/v1/payments/verify", body, &result); err != nil {
		return "", err
	}

	if result.Status.Valid() {
		return result.Status, nil
	}
	switch types.ParseState(result.State) {
	case types.StateComplete:
		return model.StatusComplete, nil
	case types.StateFailed:
		return model.StatusFailed, nil
	case types.StatePending:
		return model.StatusPending, nil
	default:
		return model.StatusUnknown, nil
	}
}

// Plans 套餐列表
func (c *Client) Plans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	if err := c.do(ctx, http.MethodGet, "/v1/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if resp.IsError() {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", path, decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
