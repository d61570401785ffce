package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

// manualScheduler 手动推进时间的调度器
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	due     time.Time
	f       func()
	stopped bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Unix(1718000000, 0)}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, due: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance 推进时间并依次触发到期的定时任务
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		idx := -1
		for i, t := range s.timers {
			if !t.stopped && !t.due.After(target) && (idx < 0 || t.due.Before(s.timers[idx].due)) {
				idx = i
			}
		}
		if idx < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.timers[idx]
		s.timers = append(s.timers[:idx], s.timers[idx+1:]...)
		t.stopped = true
		s.now = t.due
		s.mu.Unlock()

		t.f()
	}
}

// Pending 未触发的定时任务数量
func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type stubInitiator struct {
	reference string
	err       error
	calls     int
}

func (s *stubInitiator) Initiate(ctx context.Context, req *types.Request) (*types.Initiation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &types.Initiation{ID: "id-1", ProviderReference: s.reference, Status: model.StatusPending}, nil
}

type checkResult struct {
	status model.Status
	err    error
}

// scriptedChecker 按顺序返回预设结果，gate 非空时每次查询都等待放行
type scriptedChecker struct {
	mu      sync.Mutex
	results []checkResult
	calls   int
	gate    chan struct{}
	entered chan struct{}
}

func newScriptedChecker(results ...checkResult) *scriptedChecker {
	return &scriptedChecker{results: results, entered: make(chan struct{}, 16)}
}

func (c *scriptedChecker) Check(ctx context.Context, reference string) (model.Status, error) {
	c.mu.Lock()
	c.calls++
	var r checkResult
	if len(c.results) > 0 {
		r = c.results[0]
		if len(c.results) > 1 {
			c.results = c.results[1:]
		}
	} else {
		r = checkResult{status: model.StatusPending}
	}
	gate := c.gate
	c.mu.Unlock()

	c.entered <- struct{}{}
	if gate != nil {
		<-gate
	}
	return r.status, r.err
}

func (c *scriptedChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func pending() checkResult  { return checkResult{status: model.StatusPending} }
func complete() checkResult { return checkResult{status: model.StatusComplete} }
func failed() checkResult   { return checkResult{status: model.StatusFailed} }

type recorder struct {
	ch chan Update
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Update, 64)}
}

func (r *recorder) observe(u Update) { r.ch <- u }

func (r *recorder) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
		return Update{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case u := <-r.ch:
		t.Fatalf("unexpected update: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func testRequest() *types.Request {
	return &types.Request{PhoneNumber: "254712345678"}
}

func startAttempt(t *testing.T, checker Checker, cfg Config) (*Attempt, *manualScheduler, *recorder) {
	t.Helper()
	sched := newManualScheduler()
	rec := newRecorder()
	o := New(&stubInitiator{reference: "pay_123"}, checker, WithScheduler(sched), WithConfig(cfg))

	a, err := o.Start(context.Background(), testRequest(), rec.observe)
	require.NoError(t, err)
	assert.Equal(t, StateInitiating, rec.next(t).State)
	assert.Equal(t, StatePolling, rec.next(t).State)
	return a, sched, rec
}

func TestPollUntilSucceeded(t *testing.T) {
	checker := newScriptedChecker(pending(), complete())
	a, sched, rec := startAttempt(t, checker, Config{})
	assert.Equal(t, "pay_123", a.Reference())

	// 初始延迟之前不查询
	sched.Advance(9 * time.Second)
	assert.Equal(t, 0, checker.Calls())

	sched.Advance(time.Second)
	u := rec.next(t)
	assert.Equal(t, StatePolling, u.State)
	assert.Equal(t, 1, u.Attempt)

	sched.Advance(5 * time.Second)
	u = rec.next(t)
	assert.Equal(t, StateSucceeded, u.State)
	assert.Equal(t, model.StatusComplete, u.Status)

	<-a.Done()
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(time.Minute)
	assert.Equal(t, 2, checker.Calls())
}

func TestPollStopsOnFailed(t *testing.T) {
	checker := newScriptedChecker(failed())
	a, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	assert.Equal(t, StateFailed, rec.next(t).State)

	<-a.Done()
	sched.Advance(time.Minute)
	assert.Equal(t, 1, checker.Calls())
}

func TestCheckErrorKeepsPolling(t *testing.T) {
	gwErr := &payment.GatewayError{Op: "query", StatusCode: 502}
	checker := newScriptedChecker(checkResult{err: gwErr}, complete())
	a, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	u := rec.next(t)
	assert.Equal(t, StatePolling, u.State)
	assert.ErrorIs(t, u.Err, gwErr)

	sched.Advance(5 * time.Second)
	assert.Equal(t, StateSucceeded, rec.next(t).State)
	assert.Equal(t, StateSucceeded, a.State())
}

func TestInitiationFailureSkipsPolling(t *testing.T) {
	sched := newManualScheduler()
	rec := newRecorder()
	checker := newScriptedChecker()
	initErr := &payment.ValidationError{Field: "amount", Message: "amount must be a positive number"}
	o := New(&stubInitiator{err: initErr}, checker, WithScheduler(sched))

	a, err := o.Start(context.Background(), testRequest(), rec.observe)
	require.ErrorIs(t, err, initErr)

	assert.Equal(t, StateInitiating, rec.next(t).State)
	u := rec.next(t)
	assert.Equal(t, StateFailed, u.State)
	assert.ErrorIs(t, u.Err, initErr)

	<-a.Done()
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(time.Minute)
	assert.Equal(t, 0, checker.Calls())
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	checker := newScriptedChecker(pending(), complete())
	checker.gate = make(chan struct{})
	_, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	<-checker.entered

	// 查询仍在进行，接下来的两个 tick 都被跳过
	sched.Advance(5 * time.Second)
	sched.Advance(5 * time.Second)
	assert.Equal(t, 1, checker.Calls())

	checker.gate <- struct{}{}
	u := rec.next(t)
	assert.Equal(t, StatePolling, u.State)
	assert.Equal(t, 1, u.Attempt)

	sched.Advance(5 * time.Second)
	<-checker.entered
	checker.gate <- struct{}{}
	u = rec.next(t)
	assert.Equal(t, StateSucceeded, u.State)
	assert.Equal(t, 2, u.Attempt)
}

func TestGaveUpAfterMaxAttempts(t *testing.T) {
	checker := newScriptedChecker(pending(), pending(), pending(), complete())
	a, sched, rec := startAttempt(t, checker, Config{MaxAttempts: 3})

	sched.Advance(10 * time.Second)
	assert.Equal(t, StatePolling, rec.next(t).State)
	sched.Advance(5 * time.Second)
	assert.Equal(t, StatePolling, rec.next(t).State)
	sched.Advance(5 * time.Second)
	u := rec.next(t)
	assert.Equal(t, StateGaveUp, u.State)
	assert.Equal(t, 3, u.Attempt)

	<-a.Done()
	assert.Equal(t, 0, sched.Pending())

	// 放弃后仍可复查
	state, err := a.Recheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
	assert.Equal(t, StateSucceeded, rec.next(t).State)
}

func TestGaveUpAfterMaxWait(t *testing.T) {
	checker := newScriptedChecker(pending())
	_, sched, rec := startAttempt(t, checker, Config{MaxWait: 12 * time.Second})

	sched.Advance(10 * time.Second)
	assert.Equal(t, StatePolling, rec.next(t).State)

	sched.Advance(5 * time.Second)
	assert.Equal(t, StateGaveUp, rec.next(t).State)
}

func TestGaveUpWhileCheckHangs(t *testing.T) {
	checker := newScriptedChecker(complete())
	checker.gate = make(chan struct{})
	a, sched, rec := startAttempt(t, checker, Config{MaxWait: time.Minute})

	sched.Advance(10 * time.Second)
	<-checker.entered

	// 查询一直不返回，时间预算到达后放弃
	sched.Advance(10 * time.Minute)
	u := rec.next(t)
	assert.Equal(t, StateGaveUp, u.State)
	assert.Equal(t, 1, u.Attempt)

	<-a.Done()
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 1, checker.Calls())

	// 迟到的结果被丢弃
	checker.gate <- struct{}{}
	rec.none(t)
	assert.Equal(t, StateGaveUp, a.State())
}

func TestSlowCheckWithinBudgetKeepsPolling(t *testing.T) {
	checker := newScriptedChecker(pending(), complete())
	checker.gate = make(chan struct{})
	_, sched, rec := startAttempt(t, checker, Config{MaxWait: time.Minute})

	sched.Advance(10 * time.Second)
	<-checker.entered
	sched.Advance(30 * time.Second)
	rec.none(t)

	checker.gate <- struct{}{}
	assert.Equal(t, StatePolling, rec.next(t).State)

	sched.Advance(5 * time.Second)
	<-checker.entered
	checker.gate <- struct{}{}
	assert.Equal(t, StateSucceeded, rec.next(t).State)
}

func TestInFlightClearedWithResult(t *testing.T) {
	checker := newScriptedChecker(checkResult{status: model.StatusUnknown}, complete())
	checker.gate = make(chan struct{})
	a, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	<-checker.entered

	// 持有锁时放行查询，结果未生效前不允许发出下一次查询
	a.mu.Lock()
	checker.gate <- struct{}{}
	time.Sleep(20 * time.Millisecond)
	inFlight := a.inFlight
	a.mu.Unlock()
	assert.True(t, inFlight)

	u := rec.next(t)
	assert.Equal(t, model.StatusUnknown, u.Status)

	sched.Advance(5 * time.Second)
	<-checker.entered
	checker.gate <- struct{}{}
	u = rec.next(t)
	assert.Equal(t, StateSucceeded, u.State)
	assert.Equal(t, 2, u.Attempt)
}

func TestRecheckWhileGaveUpStillPending(t *testing.T) {
	checker := newScriptedChecker(pending())
	a, sched, rec := startAttempt(t, checker, Config{MaxAttempts: 1})

	sched.Advance(10 * time.Second)
	assert.Equal(t, StateGaveUp, rec.next(t).State)

	state, err := a.Recheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateGaveUp, state)
}

func TestRecheckOnSucceededIsNoop(t *testing.T) {
	checker := newScriptedChecker(complete())
	a, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	assert.Equal(t, StateSucceeded, rec.next(t).State)

	state, err := a.Recheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
	assert.Equal(t, 1, checker.Calls())
}

func TestCancelDiscardsInFlightResult(t *testing.T) {
	checker := newScriptedChecker(complete())
	checker.gate = make(chan struct{})
	a, sched, rec := startAttempt(t, checker, Config{})

	sched.Advance(10 * time.Second)
	<-checker.entered

	a.Cancel()
	<-a.Done()
	assert.Equal(t, 0, sched.Pending())

	checker.gate <- struct{}{}
	rec.none(t)
	assert.Equal(t, StatePolling, a.State())
	assert.True(t, a.Cancelled())

	_, err := a.Recheck(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestContextCancellationStopsPolling(t *testing.T) {
	sched := newManualScheduler()
	checker := newScriptedChecker()
	o := New(&stubInitiator{reference: "pay_123"}, checker, WithScheduler(sched))

	ctx, cancel := context.WithCancel(context.Background())
	a, err := o.Start(ctx, testRequest(), nil)
	require.NoError(t, err)

	cancel()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("attempt not cancelled")
	}

	sched.Advance(time.Minute)
	assert.Equal(t, 0, checker.Calls())
}

func TestStartWithCancelledContext(t *testing.T) {
	initiator := &stubInitiator{reference: "pay_123"}
	o := New(initiator, newScriptedChecker(), WithScheduler(newManualScheduler()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := o.Start(ctx, testRequest(), nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, initiator.calls)
	<-a.Done()
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 10*time.Second, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 12, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.MaxWait)
}
