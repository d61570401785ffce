package payment

import (
	"errors"
)

// Provider 支付渠道
type Provider string

const (
	ProviderIntaSend Provider = "intasend" // M-Pesa STK Push
	ProviderWechat   Provider = "wechat"   // 微信支付
	ProviderAlipay   Provider = "alipay"   // 支付宝
)

// Status 本地支付状态
type Status string

const (
	StatusPending  Status = "pending"  // 待支付
	StatusComplete Status = "complete" // 已支付（终态）
	StatusFailed   Status = "failed"   // 支付失败（终态）
	StatusUnknown  Status = "unknown"  // 网关返回了无法识别的状态
)

// IsTerminal 是否为终态，终态之后不允许再写入
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Valid 是否为合法的本地状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusComplete, StatusFailed, StatusUnknown:
		return true
	}
	return false
}

// Validate 验证支付记录
func (p *Payment) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if !p.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if p.ProviderReference == "" {
		return errors.New("provider_reference is required")
	}
	if !p.ValidateProvider() {
		return errors.New("invalid payment provider")
	}
	if !p.Status.Valid() {
		return errors.New("invalid payment status")
	}
	return nil
}

// ValidateProvider 验证支付渠道
func (p *Payment) ValidateProvider() bool {
	switch Provider(p.Provider) {
	case ProviderIntaSend, ProviderWechat, ProviderAlipay:
		return true
	}
	return false
}

// IsTerminal 检查是否已终结
func (p *Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}
