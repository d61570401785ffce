// Package payment 支付相关接口
package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"studysphere/app/http/middlewares"
	model "studysphere/app/models/payment"
	"studysphere/app/requests"
	"studysphere/pkg/auth"
	"studysphere/pkg/logger"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
	"studysphere/pkg/queue"
	"studysphere/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Initiator 发起支付
type Initiator interface {
	Initiate(ctx context.Context, principal auth.Principal, req *types.Request) (*types.Initiation, error)
}

// Reconciler 查询并同步支付状态
type Reconciler interface {
	ReconcileOwned(ctx context.Context, userID, reference string) (model.Status, error)
}

// Records 支付记录只读查询
type Records interface {
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]model.Payment, int64, error)
}

// Enqueuer 投递异步对账任务
type Enqueuer interface {
	Push(ctx context.Context, task *queue.ReconcileTask) (bool, error)
}

// HealthCheck 依赖健康检查
type HealthCheck func(ctx context.Context) error

// PaymentController 支付控制器
type PaymentController struct {
	initiator  Initiator
	reconciler Reconciler
	records    Records
	queue      Enqueuer // 可以为 nil，此时 recheck 同步执行
	metrics    *queue.QueueMetrics
	checks     map[string]HealthCheck
}

// Options 控制器依赖
type Options struct {
	Initiator  Initiator
	Reconciler Reconciler
	Records    Records
	Queue      Enqueuer
	Metrics    *queue.QueueMetrics
	Checks     map[string]HealthCheck
}

// NewPaymentController 创建支付控制器
func NewPaymentController(opts Options) *PaymentController {
	return &PaymentController{
		initiator:  opts.Initiator,
		reconciler: opts.Reconciler,
		records:    opts.Records,
		queue:      opts.Queue,
		metrics:    opts.Metrics,
		checks:     opts.Checks,
	}
}

// Store 发起支付
// POST /v1/payments
func (pc *PaymentController) Store(c *gin.Context) {
	principal, ok := middlewares.CurrentPrincipal(c)
	if !ok {
		response.Abort400(c, auth.ErrUnauthenticated.Error())
		return
	}

	request, err := requests.ValidatePaymentStore(c)
	if err != nil {
		renderRequestError(c, err)
		return
	}

	result, err := pc.initiator.Initiate(c.Request.Context(), principal, request.ToPaymentRequest())
	if err != nil {
		renderError(c, err)
		return
	}

	response.Data(c, result)
}

// Verify 按请求体中的 payment_id 查询支付状态
// POST /v1/payments/verify
func (pc *PaymentController) Verify(c *gin.Context) {
	request, err := requests.ValidatePaymentVerify(c)
	if err != nil {
		renderRequestError(c, err)
		return
	}
	pc.reconcile(c, request.PaymentID)
}

// Status 按路径中的 reference 查询支付状态
// GET /v1/payments/:reference/status
func (pc *PaymentController) Status(c *gin.Context) {
	pc.reconcile(c, c.Param("reference"))
}

func (pc *PaymentController) reconcile(c *gin.Context, reference string) {
	principal, ok := middlewares.CurrentPrincipal(c)
	if !ok {
		response.Abort400(c, auth.ErrUnauthenticated.Error())
		return
	}

	status, err := pc.reconciler.ReconcileOwned(c.Request.Context(), principal.UserID, reference)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Data(c, gin.H{
		"id":     reference,
		"state":  providerState(status),
		"status": status,
	})
}

// Index 当前用户的支付记录
// GET /v1/payments?page=1&per_page=20
func (pc *PaymentController) Index(c *gin.Context) {
	principal, ok := middlewares.CurrentPrincipal(c)
	if !ok {
		response.Abort400(c, auth.ErrUnauthenticated.Error())
		return
	}

	page := cast.ToInt(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := cast.ToInt(c.DefaultQuery("per_page", cast.ToString(defaultPageSize)))
	if perPage < 1 || perPage > maxPageSize {
		perPage = defaultPageSize
	}

	records, total, err := pc.records.ListByUser(c.Request.Context(), principal.UserID, page, perPage)
	if err != nil {
		response.ServerError(c, err, "could not load payments, please try again")
		return
	}

	response.Data(c, gin.H{
		"payments": records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// Recheck 投递一次异步对账，用于轮询放弃之后
// POST /v1/payments/:reference/recheck
func (pc *PaymentController) Recheck(c *gin.Context) {
	principal, ok := middlewares.CurrentPrincipal(c)
	if !ok {
		response.Abort400(c, auth.ErrUnauthenticated.Error())
		return
	}

	reference := c.Param("reference")
	record, err := pc.records.GetByReference(c.Request.Context(), reference)
	if err != nil {
		renderError(c, err)
		return
	}
	if record.UserID != principal.UserID {
		renderError(c, &payment.NotFoundError{Reference: reference})
		return
	}

	// 已是终态，直接返回
	if record.IsTerminal() {
		response.Data(c, gin.H{"id": reference, "status": record.Status, "queued": false})
		return
	}

	if pc.queue == nil {
		pc.reconcile(c, reference)
		return
	}

	queued, err := pc.queue.Push(c.Request.Context(), &queue.ReconcileTask{
		Reference:  reference,
		Source:     queue.SourceRecheck,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		response.ServerError(c, err, "could not schedule a status check, please try again")
		return
	}

	response.Accepted(c, gin.H{"id": reference, "status": record.Status, "queued": queued})
}

// Plans 订阅套餐列表
// GET /v1/plans
func (pc *PaymentController) Plans(c *gin.Context) {
	response.Data(c, model.Plans())
}

// Health 依赖健康检查
// GET /v1/health
func (pc *PaymentController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	components := make(map[string]string, len(pc.checks))
	for name, check := range pc.checks {
		if err := check(ctx); err != nil {
			healthy = false
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	body := gin.H{"components": components}
	if pc.metrics != nil {
		body["queue"] = pc.metrics.Snapshot()
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Status: response.Error,
			Error:  "service unavailable",
			Data:   body,
		})
		return
	}
	response.Data(c, body)
}

// renderRequestError 请求体解析或表单验证失败
func renderRequestError(c *gin.Context, err error) {
	var verr requests.ValidationError
	if errors.As(err, &verr) {
		response.ValidationError(c, err, verr.Errors)
		return
	}
	response.BadRequest(c, err)
}

// renderError 将支付服务的错误映射为 HTTP 状态码
func renderError(c *gin.Context, err error) {
	var (
		gatewayErr     *payment.GatewayError
		persistenceErr *payment.PersistenceError
	)

	switch {
	case payment.IsValidation(err):
		response.BadRequest(c, err)
	case payment.IsNotFound(err):
		response.NotFound(c, err)
	case errors.As(err, &gatewayErr):
		logger.Warn("Payment", zap.String("event", "gateway_error"), zap.Error(err))
		msg := "payment provider is unavailable, please try again"
		if gatewayErr.Op == "initiate" && gatewayErr.Message != "" {
			msg = gatewayErr.Message
		}
		response.Abort500(c, msg)
	case errors.As(err, &persistenceErr):
		response.ServerError(c, err, "could not save payment, please try again")
	default:
		response.ServerError(c, err)
	}
}

// providerState 与前端约定的 state 字段，沿用网关的大写状态
func providerState(status model.Status) types.ProviderState {
	switch status {
	case model.StatusComplete:
		return types.StateComplete
	case model.StatusFailed:
		return types.StateFailed
	case model.StatusPending:
		return types.StatePending
	default:
		return types.StateUnknown
	}
}
