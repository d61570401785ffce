package requests

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/thedevsaddam/govalidator"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment/types"
)

// PaymentStoreRequest 发起支付
type PaymentStoreRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	PhoneNumber string  `json:"phone_number"`
	Email       string  `json:"email"`
	Method      string  `json:"method"`
	Plan        string  `json:"plan"`
}

// PaymentVerifyRequest 查询支付状态
type PaymentVerifyRequest struct {
	PaymentID string `json:"payment_id"`
}

// ValidatePaymentStore 验证发起支付请求
// 金额是否为正数由支付服务统一判断
func ValidatePaymentStore(c *gin.Context) (*PaymentStoreRequest, error) {
	rules := govalidator.MapData{
		"currency":     []string{"alpha", "len:3"},
		"phone_number": []string{"digits_between:9,15"},
		"email":        []string{"email"},
		"method":       []string{"in:M-PESA,CARD,BANK"},
		"plan":         []string{"in:basic,premium,pro"},
	}
	messages := govalidator.MapData{
		"currency": []string{
			"alpha:currency must be an ISO 4217 code",
			"len:currency must be an ISO 4217 code",
		},
		"phone_number": []string{"digits_between:phone_number must contain 9 to 15 digits"},
		"email":        []string{"email:email is invalid"},
		"method":       []string{"in:method must be one of M-PESA, CARD, BANK"},
		"plan":         []string{"in:plan must be one of basic, premium, pro"},
	}

	return ValidateRequest[PaymentStoreRequest](c, rules, messages)
}

// Normalize 套餐代码不区分大小写
func (r *PaymentStoreRequest) Normalize() {
	r.Plan = strings.ToLower(strings.TrimSpace(r.Plan))
}

// ValidatePaymentVerify 验证查询请求
func ValidatePaymentVerify(c *gin.Context) (*PaymentVerifyRequest, error) {
	rules := govalidator.MapData{
		"payment_id": []string{"required", "max:128"},
	}
	messages := govalidator.MapData{
		"payment_id": []string{
			"required:payment_id is required",
			"max:payment_id is too long",
		},
	}

	return ValidateRequest[PaymentVerifyRequest](c, rules, messages)
}

// ToPaymentRequest 转换为支付服务的参数
// 指定套餐时金额与币种以套餐为准
func (r *PaymentStoreRequest) ToPaymentRequest() *types.Request {
	req := &types.Request{
		Amount:      decimal.NewFromFloat(r.Amount),
		Currency:    strings.ToUpper(r.Currency),
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
		Method:      r.Method,
	}

	if plan, ok := model.LookupPlan(r.Plan); ok {
		req.Amount = plan.Amount
		req.Currency = plan.Currency
		req.PlanLabel = plan.Name
	}

	return req
}
