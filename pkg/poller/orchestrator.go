package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment/types"
)

// ErrCancelled 尝试已被放弃
var ErrCancelled = errors.New("payment attempt cancelled")

// 默认轮询参数
const (
	DefaultInitialDelay = 10 * time.Second
	DefaultInterval     = 5 * time.Second
	DefaultMaxAttempts  = 12
	DefaultMaxWait      = 2 * time.Minute
)

// Initiator 发起支付
type Initiator interface {
	Initiate(ctx context.Context, req *types.Request) (*types.Initiation, error)
}

// Checker 查询一次对账结果
type Checker interface {
	Check(ctx context.Context, reference string) (model.Status, error)
}

// Config 轮询参数
type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

// Update 状态变化通知
type Update struct {
	State     State
	Reference string
	Status    model.Status
	Attempt   int
	Err       error
}

// Orchestrator 轮询编排器
type Orchestrator struct {
	initiator Initiator
	checker   Checker
	scheduler Scheduler
	cfg       Config
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithScheduler 替换调度器
func WithScheduler(s Scheduler) Option {
	return func(o *Orchestrator) { o.scheduler = s }
}

// WithConfig 设置轮询参数，未设置的字段使用默认值
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg.withDefaults() }
}

// New 创建编排器
func New(initiator Initiator, checker Checker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		initiator: initiator,
		checker:   checker,
		scheduler: NewClockScheduler(),
		cfg:       Config{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attempt 一次支付尝试
type Attempt struct {
	o        *Orchestrator
	observer func(Update)

	mu        sync.Mutex
	state     State
	reference string
	status    model.Status
	attempts  int
	startedAt time.Time
	timer     Timer
	cancelled bool
	done      chan struct{}
	closeOnce sync.Once

	inFlight bool
	// 查询不随取消中断，已发出的网关请求让它自然结束
	checkCtx context.Context
}

// Start 发起支付并开始轮询
// 发起失败时返回错误，此时 Attempt 处于 failed 状态且不会轮询
func (o *Orchestrator) Start(ctx context.Context, req *types.Request, observer func(Update)) (*Attempt, error) {
	if observer == nil {
		observer = func(Update) {}
	}

	a := &Attempt{
		o:        o,
		observer: observer,
		state:    StateIdle,
		done:     make(chan struct{}),
		checkCtx: context.WithoutCancel(ctx),
	}

	a.apply(EventSubmit, nil)

	if err := ctx.Err(); err != nil {
		a.Cancel()
		return a, err
	}

	result, err := o.initiator.Initiate(ctx, req)
	if err != nil {
		a.apply(EventInitiateFailed, err)
		a.finish()
		return a, err
	}

	a.mu.Lock()
	a.reference = result.ProviderReference
	a.status = result.Status
	a.startedAt = o.scheduler.Now()
	a.mu.Unlock()

	a.apply(EventInitiated, nil)

	a.mu.Lock()
	if !a.cancelled {
		a.timer = o.scheduler.AfterFunc(o.cfg.InitialDelay, a.tick)
	}
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			a.Cancel()
		case <-a.done:
		}
	}()

	return a, nil
}

// apply 执行状态转换并通知
func (a *Attempt) apply(event Event, err error) {
	a.mu.Lock()
	next, ok := Transition(a.state, event)
	if !ok {
		a.mu.Unlock()
		return
	}
	a.state = next
	u := a.snapshot(err)
	a.mu.Unlock()

	a.observer(u)
}

// tick 固定频率触发，上一次查询未结束时跳过本次
// 查询迟迟不返回时时间预算照样生效
func (a *Attempt) tick() {
	a.mu.Lock()
	if a.cancelled || a.state != StatePolling {
		a.mu.Unlock()
		return
	}

	if a.inFlight {
		if !a.deadlinePassed() {
			a.timer = a.o.scheduler.AfterFunc(a.o.cfg.Interval, a.tick)
			a.mu.Unlock()
			return
		}
		// 进行中的查询结果到达时状态已不是 polling，会被丢弃
		a.state, _ = Transition(a.state, EventBudgetExhausted)
		a.stopTimer()
		u := a.snapshot(nil)
		a.mu.Unlock()

		a.observer(u)
		a.finish()
		return
	}

	a.timer = a.o.scheduler.AfterFunc(a.o.cfg.Interval, a.tick)
	a.inFlight = true
	a.attempts++
	reference := a.reference
	a.mu.Unlock()

	go a.check(reference)
}

func (a *Attempt) check(reference string) {
	status, err := a.o.checker.Check(a.checkCtx, reference)

	a.mu.Lock()
	// 与结果一起清除，下一次查询只能在本次结果生效后发出
	a.inFlight = false
	// 取消后到达的结果直接丢弃
	if a.cancelled || a.state != StatePolling {
		a.mu.Unlock()
		return
	}

	next, _ := Transition(a.state, eventFor(status, err))
	if !next.IsTerminal() && a.budgetExhausted() {
		next, _ = Transition(next, EventBudgetExhausted)
	}
	a.state = next
	if err == nil {
		a.status = status
	}
	if next.IsTerminal() {
		a.stopTimer()
	}
	u := a.snapshot(err)
	a.mu.Unlock()

	a.observer(u)
	if next.IsTerminal() {
		a.finish()
	}
}

// budgetExhausted 调用方需持有锁
func (a *Attempt) budgetExhausted() bool {
	return a.attempts >= a.o.cfg.MaxAttempts || a.deadlinePassed()
}

// deadlinePassed 调用方需持有锁
func (a *Attempt) deadlinePassed() bool {
	return a.o.scheduler.Now().Sub(a.startedAt) >= a.o.cfg.MaxWait
}

// Recheck 按需复查，主要用于 gave_up 之后
// 已成功或失败的尝试直接返回当前状态
func (a *Attempt) Recheck(ctx context.Context) (State, error) {
	a.mu.Lock()
	state, reference, cancelled := a.state, a.reference, a.cancelled
	a.mu.Unlock()

	if cancelled {
		return state, ErrCancelled
	}
	if state != StateGaveUp {
		return state, nil
	}

	status, err := a.o.checker.Check(ctx, reference)

	a.mu.Lock()
	if a.cancelled || a.state != StateGaveUp {
		state = a.state
		a.mu.Unlock()
		return state, err
	}
	a.state, _ = Transition(a.state, eventFor(status, err))
	if err == nil {
		a.status = status
	}
	u := a.snapshot(err)
	a.mu.Unlock()

	a.observer(u)
	return u.State, err
}

// Cancel 停止轮询，丢弃仍在进行中的查询结果
// 不会撤销已发出的网关请求，也不会修改已落库的记录
func (a *Attempt) Cancel() {
	a.mu.Lock()
	if a.cancelled {
		a.mu.Unlock()
		return
	}
	a.cancelled = true
	a.stopTimer()
	a.mu.Unlock()

	a.finish()
}

// stopTimer 调用方需持有锁
func (a *Attempt) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Attempt) finish() {
	a.closeOnce.Do(func() { close(a.done) })
}

func (a *Attempt) snapshot(err error) Update {
	return Update{
		State:     a.state,
		Reference: a.reference,
		Status:    a.status,
		Attempt:   a.attempts,
		Err:       err,
	}
}

// Done 到达终态或被取消时关闭
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// State 当前状态
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Reference 网关引用
func (a *Attempt) Reference() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reference
}

// Attempts 已发起的查询次数
func (a *Attempt) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

// Cancelled 是否已被取消
func (a *Attempt) Cancelled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled
}

func eventFor(status model.Status, err error) Event {
	if err != nil {
		return EventCheckError
	}
	switch status {
	case model.StatusComplete:
		return EventComplete
	case model.StatusFailed:
		return EventFailed
	default:
		return EventPending
	}
}
