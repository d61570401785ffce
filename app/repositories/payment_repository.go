package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment"
)

var terminalStatuses = []model.Status{model.StatusComplete, model.StatusFailed}

// PaymentRepository 支付记录仓库
// 所有写操作以 provider_reference 为键，终态通过条件更新保护而不是加锁
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

// Create 创建 pending 状态的支付记录
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("provider_reference = ?", p.ProviderReference).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &payment.ConflictError{Reference: p.ProviderReference}
	}

	p.Status = model.StatusPending
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &payment.ConflictError{Reference: p.ProviderReference}
	}
	return err
}

// UpdateStatus 更新支付状态，返回是否发生了写入
// 相同状态视为空操作；终态记录拒绝修改并返回 ErrTerminalStatus
func (r *PaymentRepository) UpdateStatus(ctx context.Context, reference string, status model.Status) (bool, error) {
	if !status.Valid() {
		return false, &payment.ValidationError{Field: "status", Message: "invalid payment status"}
	}

	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("provider_reference = ? AND status <> ? AND status NOT IN ?", reference, status, terminalStatuses).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// 未写入时区分原因
	current, err := r.GetByReference(ctx, reference)
	if err != nil {
		return false, err
	}
	if current.Status == status {
		return false, nil
	}
	return false, payment.ErrTerminalStatus
}

// GetByReference 根据网关引用获取支付记录
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("provider_reference = ?", reference).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &payment.NotFoundError{Reference: reference}
		}
		return nil, err
	}
	return &p, nil
}

// ListByUser 分页获取用户的支付记录，按创建时间倒序
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]model.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []model.Payment
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error
	return payments, total, err
}

// ListStale 获取创建时间早于 createdBefore 且尚未终结的记录
func (r *PaymentRepository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	query := r.db.WithContext(ctx).
		Where("status NOT IN ? AND created_at < ?", terminalStatuses, createdBefore).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&payments).Error
	return payments, err
}
