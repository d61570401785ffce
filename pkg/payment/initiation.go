package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	model "studysphere/app/models/payment"
	"studysphere/pkg/auth"
	"studysphere/pkg/logger"
	"studysphere/pkg/payment/types"
	"studysphere/pkg/payment/utils"
)

const (
	DefaultCurrency = "KES"
	DefaultMethod   = "M-PESA"
)

// InitiationConfig 发起支付服务配置
type InitiationConfig struct {
	Currency string
	Method   string
	Now      func() time.Time
}

// InitiationService 校验请求、调用网关、写入 pending 记录
type InitiationService struct {
	gateway  types.Gateway
	repo     types.Repository
	currency string
	method   string
	now      func() time.Time
}

// NewInitiationService 创建发起支付服务
func NewInitiationService(gateway types.Gateway, repo types.Repository, cfg InitiationConfig) *InitiationService {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Method == "" {
		cfg.Method = DefaultMethod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &InitiationService{
		gateway:  gateway,
		repo:     repo,
		currency: cfg.Currency,
		method:   cfg.Method,
		now:      cfg.Now,
	}
}

// Initiate 发起支付
// 网关调用失败时不会写入任何记录；网关成功但写库失败时返回 PersistenceError
func (s *InitiationService) Initiate(ctx context.Context, principal auth.Principal, req *types.Request) (*types.Initiation, error) {
	if !principal.Authenticated() {
		return nil, &ValidationError{Field: "principal", Message: auth.ErrUnauthenticated.Error()}
	}
	if req == nil || !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}

	phone := firstNonEmpty(req.PhoneNumber, principal.Phone)
	email := firstNonEmpty(req.Email, principal.Email)
	if phone == "" && email == "" {
		return nil, &ValidationError{Message: "missing contact"}
	}

	currency := strings.ToUpper(firstNonEmpty(req.Currency, s.currency))
	method := firstNonEmpty(req.Method, s.method)
	apiRef := utils.GenerateAPIRef(principal.UserID, s.now())

	result, err := s.gateway.Initiate(ctx, &types.GatewayRequest{
		Amount:      req.Amount,
		Currency:    currency,
		PhoneNumber: phone,
		Email:       email,
		APIRef:      apiRef,
		Method:      method,
		Description: req.PlanLabel,
	})
	if err != nil {
		logger.WarnString("Payment", "Initiate", "网关发起支付失败: "+err.Error())
		var gErr *GatewayError
		if !errors.As(err, &gErr) {
			err = &GatewayError{Op: "initiate", Err: err}
		}
		return nil, err
	}

	// 网关未返回引用时使用本地生成的幂等引用
	reference := result.ProviderReference
	if reference == "" {
		reference = apiRef
	}

	record := &model.Payment{
		UserID:            principal.UserID,
		Amount:            req.Amount,
		Currency:          currency,
		ProviderReference: reference,
		APIRef:            apiRef,
		Status:            model.StatusPending,
		Provider:          string(s.gateway.Name()),
		Method:            method,
		PlanLabel:         req.PlanLabel,
		PayerContact:      firstNonEmpty(phone, email),
	}
	if json.Valid(result.Raw) {
		record.ProviderPayload = datatypes.JSON(result.Raw)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		// 用户可能已经收到扣款提示但本地没有记录，需要人工对账
		logger.Error("Payment",
			zap.String("event", "reconcile_candidate"),
			zap.String("provider_reference", reference),
			zap.String("api_ref", apiRef),
			zap.String("user_id", principal.UserID),
			zap.String("amount", req.Amount.String()),
			zap.String("currency", currency),
			zap.Error(err),
		)
		return nil, &PersistenceError{Op: "create", Reference: reference, Err: err}
	}

	logger.Info("Payment",
		zap.String("event", "initiated"),
		zap.String("provider_reference", reference),
		zap.String("user_id", principal.UserID),
		zap.String("provider", record.Provider),
	)

	return &types.Initiation{
		ID:                record.ID,
		ProviderReference: reference,
		Status:            record.Status,
		PaymentURL:        result.PaymentURL,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
