// Package payment 支付记录模型
package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studysphere/app/models"
)

// Payment 支付记录模型
// 每一次发起支付对应一条记录，provider_reference 是对账的唯一依据
type Payment struct {
	ID                string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID            string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(8);not null" json:"currency"`
	ProviderReference string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"provider_reference"`
	APIRef            string          `gorm:"type:varchar(128);index" json:"api_ref"` // 发起时生成的幂等引用
	Status            Status          `gorm:"type:varchar(20);index;not null" json:"status"`
	Provider          string          `gorm:"type:varchar(20);not null" json:"provider"`
	Method            string          `gorm:"type:varchar(32)" json:"method"`
	PlanLabel         string          `gorm:"type:varchar(120)" json:"plan_label"`
	PayerContact      string          `gorm:"type:varchar(255)" json:"-"`
	ProviderPayload   datatypes.JSON  `gorm:"type:json" json:"-"` // 网关发起时的原始返回

	models.CommonTimestampsField
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate GORM 钩子，补齐主键与初始状态
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	return p.Validate()
}
