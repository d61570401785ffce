package types

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"studysphere/app/models/payment"
)

// ProviderState 网关侧状态，封闭集合
// 各渠道的原始状态只在 ParseState 或渠道自身的映射表中转换一次
type ProviderState string

const (
	StateComplete ProviderState = "COMPLETE"
	StateFailed   ProviderState = "FAILED"
	StatePending  ProviderState = "PENDING"
	StateUnknown  ProviderState = "UNKNOWN"
)

// ParseState 将网关返回的原始状态转换为封闭集合
// 未识别的值一律视为 UNKNOWN，不会被当成失败
func ParseState(raw string) ProviderState {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETE", "COMPLETED", "SUCCESS", "SUCCEEDED", "PAID":
		return StateComplete
	case "FAILED", "FAILURE", "CANCELLED", "CANCELED":
		return StateFailed
	case "PENDING", "PROCESSING", "QUEUED", "RETRY", "INITIATED":
		return StatePending
	default:
		return StateUnknown
	}
}

// Request 发起支付请求参数
type Request struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PhoneNumber string          `json:"phone_number"`
	Email       string          `json:"email"`
	Method      string          `json:"method"`
	PlanLabel   string          `json:"plan_label"`
}

// GatewayRequest 发送给支付网关的参数
type GatewayRequest struct {
	Amount      decimal.Decimal
	Currency    string
	PhoneNumber string
	Email       string
	APIRef      string // 调用方生成的幂等引用
	Method      string
	Description string
}

// GatewayResult 网关发起支付的结果
type GatewayResult struct {
	ProviderReference string
	PaymentURL        string // 支付宝等跳转类渠道返回
	Raw               []byte
}

// StatusResult 网关查询支付状态的结果
type StatusResult struct {
	State    ProviderState
	RawState string
	Raw      []byte
}

// Initiation 发起支付后返回给调用方的结果
type Initiation struct {
	ID                string         `json:"id"`
	ProviderReference string         `json:"provider_reference"`
	Status            payment.Status `json:"status"`
	PaymentURL        string         `json:"payment_url,omitempty"`
}

// Gateway 支付网关接口
type Gateway interface {
	Name() payment.Provider
	Initiate(ctx context.Context, req *GatewayRequest) (*GatewayResult, error)
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
}

// Repository 支付记录仓储接口
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	UpdateStatus(ctx context.Context, reference string, status payment.Status) (bool, error)
	GetByReference(ctx context.Context, reference string) (*payment.Payment, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]payment.Payment, int64, error)
	ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]payment.Payment, error)
}
