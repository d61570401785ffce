package payment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	model "studysphere/app/models/payment"
	"studysphere/pkg/logger"
	"studysphere/pkg/payment/types"
)

// ReconciliationService 查询网关并将结果同步到本地记录
type ReconciliationService struct {
	gateway types.Gateway
	repo    types.Repository
}

// NewReconciliationService 创建对账服务
func NewReconciliationService(gateway types.Gateway, repo types.Repository) *ReconciliationService {
	return &ReconciliationService{
		gateway: gateway,
		repo:    repo,
	}
}

// Reconcile 对账并返回最新的本地状态
// 网关错误不会修改本地记录，调用方按计划重试即可
func (s *ReconciliationService) Reconcile(ctx context.Context, reference string) (model.Status, error) {
	return s.reconcile(ctx, reference, "")
}

// ReconcileOwned 与 Reconcile 相同，但要求记录属于 userID
func (s *ReconciliationService) ReconcileOwned(ctx context.Context, userID, reference string) (model.Status, error) {
	if userID == "" {
		return "", &ValidationError{Field: "principal", Message: "user not authenticated"}
	}
	return s.reconcile(ctx, reference, userID)
}

func (s *ReconciliationService) reconcile(ctx context.Context, reference, owner string) (model.Status, error) {
	if reference == "" {
		return "", &ValidationError{Field: "payment_id", Message: "payment reference is required"}
	}

	record, err := s.load(ctx, reference)
	if err != nil {
		return "", err
	}
	if owner != "" && record.UserID != owner {
		return "", &NotFoundError{Reference: reference}
	}

	// 已终结的记录不再查询网关
	if record.Status.IsTerminal() {
		return record.Status, nil
	}

	result, err := s.gateway.QueryStatus(ctx, reference)
	if err != nil {
		var gErr *GatewayError
		if !errors.As(err, &gErr) {
			err = &GatewayError{Op: "query", Err: err}
		}
		logger.WarnString("Payment", "Reconcile", reference+": "+err.Error())
		return record.Status, err
	}

	next := MapState(record.Status, result.State)
	if next == record.Status {
		return next, nil
	}

	written, err := s.repo.UpdateStatus(ctx, reference, next)
	switch {
	case errors.Is(err, ErrTerminalStatus):
		// 并发的对账已经写入终态，以库中结果为准
		latest, loadErr := s.load(ctx, reference)
		if loadErr != nil {
			return "", loadErr
		}
		return latest.Status, nil
	case IsNotFound(err):
		return "", err
	case err != nil:
		return record.Status, &PersistenceError{Op: "update", Reference: reference, Err: err}
	}

	if written {
		logger.Info("Payment",
			zap.String("event", "status_changed"),
			zap.String("provider_reference", reference),
			zap.String("from", string(record.Status)),
			zap.String("to", string(next)),
			zap.String("provider_state", result.RawState),
		)
	}

	return next, nil
}

func (s *ReconciliationService) load(ctx context.Context, reference string) (*model.Payment, error) {
	record, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "get", Reference: reference, Err: err}
	}
	return record, nil
}
