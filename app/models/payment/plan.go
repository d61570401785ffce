package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Plan 订阅套餐，按月计费
type Plan struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Features []string        `json:"features"`
	Popular  bool            `json:"popular"`
}

var plans = []Plan{
	{
		Code:     "basic",
		Name:     "Basic",
		Amount:   decimal.NewFromInt(500),
		Currency: "KES",
		Features: []string{"10 AI chats per day", "Basic quizzes", "File upload"},
	},
	{
		Code:     "premium",
		Name:     "Premium",
		Amount:   decimal.NewFromInt(1500),
		Currency: "KES",
		Features: []string{"Unlimited AI chats", "Advanced quizzes", "Study groups", "Progress tracking"},
		Popular:  true,
	},
	{
		Code:     "pro",
		Name:     "Pro",
		Amount:   decimal.NewFromInt(3000),
		Currency: "KES",
		Features: []string{"Everything in Premium", "Priority support", "Custom study plans", "Analytics"},
	},
}

// Plans 返回全部套餐的副本
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// LookupPlan 按 code 查找套餐，忽略大小写
func LookupPlan(code string) (Plan, bool) {
	for _, p := range plans {
		if strings.EqualFold(p.Code, code) {
			return p, true
		}
	}
	return Plan{}, false
}
