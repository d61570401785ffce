// Package paymenttest 提供测试用的内存仓储与可编程网关
package paymenttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

// MemoryRepository 与 gorm 仓储语义一致的内存实现
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*model.Payment
	Writes  []StatusWrite // 每一次实际写入
	Now     func() time.Time

	CreateErr error // 非空时 Create 直接失败
}

// StatusWrite 记录一次状态写入
type StatusWrite struct {
	Reference string
	Status    model.Status
}

// NewMemoryRepository 创建内存仓储
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*model.Payment),
		Now:     time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return r.CreateErr
	}
	if _, ok := r.records[p.ProviderReference]; ok {
		return &payment.ConflictError{Reference: p.ProviderReference}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.Now()
	}
	p.UpdatedAt = p.CreatedAt

	stored := *p
	r.records[p.ProviderReference] = &stored
	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, reference string, status model.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[reference]
	switch {
	case !ok:
		return false, &payment.NotFoundError{Reference: reference}
	case rec.Status == status:
		return false, nil
	case rec.Status.IsTerminal():
		return false, payment.ErrTerminalStatus
	}

	rec.Status = status
	rec.UpdatedAt = r.Now()
	r.Writes = append(r.Writes, StatusWrite{Reference: reference, Status: status})
	return true, nil
}

func (r *MemoryRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[reference]
	if !ok {
		return nil, &payment.NotFoundError{Reference: reference}
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]model.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []model.Payment
	for _, rec := range r.records {
		if rec.UserID == userID {
			all = append(all, *rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []model.Payment{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryRepository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Payment
	for _, rec := range r.records {
		if !rec.Status.IsTerminal() && rec.CreatedAt.Before(createdBefore) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len 记录数量
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Gateway 可编程网关
type Gateway struct {
	mu sync.Mutex

	InitiateResult *types.GatewayResult
	InitiateErr    error
	States         map[string]types.ProviderState
	QueryErr       error

	Initiated []*types.GatewayRequest
	Queried   []string
}

// NewGateway 创建网关，默认返回 reference 为 ref 的发起结果
func NewGateway(ref string) *Gateway {
	return &Gateway{
		InitiateResult: &types.GatewayResult{ProviderReference: ref, Raw: []byte(`{"id":"` + ref + `"}`)},
		States:         make(map[string]types.ProviderState),
	}
}

func (g *Gateway) Name() model.Provider { return model.ProviderIntaSend }

func (g *Gateway) Initiate(ctx context.Context, req *types.GatewayRequest) (*types.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Initiated = append(g.Initiated, req)
	if g.InitiateErr != nil {
		return nil, g.InitiateErr
	}
	result := *g.InitiateResult
	return &result, nil
}

func (g *Gateway) QueryStatus(ctx context.Context, reference string) (*types.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Queried = append(g.Queried, reference)
	if g.QueryErr != nil {
		return nil, g.QueryErr
	}
	state, ok := g.States[reference]
	if !ok {
		state = types.StatePending
	}
	return &types.StatusResult{State: state, RawState: string(state)}, nil
}

// SetState 设置某个引用的网关状态
func (g *Gateway) SetState(reference string, state types.ProviderState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.States[reference] = state
}

// SetQueryErr 设置查询错误
func (g *Gateway) SetQueryErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.QueryErr = err
}

// QueryCount 查询次数
func (g *Gateway) QueryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Queried)
}
