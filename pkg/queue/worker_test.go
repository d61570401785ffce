package queue

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
)

// memorySource 基于 channel 的任务来源
type memorySource struct {
	tasks chan *ReconcileTask

	mu       sync.Mutex
	released []string
}

func newMemorySource() *memorySource {
	return &memorySource{tasks: make(chan *ReconcileTask, 16)}
}

func (s *memorySource) Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error) {
	select {
	case task := <-s.tasks:
		return task, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memorySource) Release(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, reference)
	return nil
}

func (s *memorySource) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (r *fakeReconciler) Reconcile(ctx context.Context, reference string) (model.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, reference)
	if err := r.errs[reference]; err != nil {
		return model.StatusPending, err
	}
	return model.StatusComplete, nil
}

func (r *fakeReconciler) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestWorkerProcessesTasks(t *testing.T) {
	source := newMemorySource()
	reconciler := &fakeReconciler{errs: map[string]error{
		"missing": &payment.NotFoundError{Reference: "missing"},
		"flaky":   &payment.GatewayError{Op: "query", StatusCode: 503},
	}}
	metrics := NewQueueMetrics()

	w := NewWorker(source, reconciler, metrics, WorkerConfig{
		WorkerCount: 2,
		PopTimeout:  20 * time.Millisecond,
	})
	w.Start()

	for _, ref := range []string{"pay_1", "pay_2", "missing", "flaky"} {
		source.tasks <- &ReconcileTask{Reference: ref, Source: SourceRecheck, EnqueuedAt: time.Now()}
	}

	require.Eventually(t, func() bool { return reconciler.Calls() == 4 }, 2*time.Second, 10*time.Millisecond)
	w.Stop()

	assert.ElementsMatch(t, []string{"pay_1", "pay_2", "missing", "flaky"}, source.Released())

	snap := metrics.Snapshot()
	assert.EqualValues(t, 2, snap.Processed)
	assert.EqualValues(t, 2, snap.Failed)
	assert.EqualValues(t, 4, snap.ProcessLatency.Count)
	assert.EqualValues(t, 4, snap.WaitLatency.Count)
}

type failingSource struct {
	memorySource
	calls int
	mu    sync.Mutex
}

func (s *failingSource) Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil, errors.New("connection refused")
}

func TestWorkerStopsWhileBackingOff(t *testing.T) {
	source := &failingSource{}
	w := NewWorker(source, &fakeReconciler{}, nil, WorkerConfig{
		WorkerCount:     1,
		RetryInterval:   time.Hour,
		ShutdownTimeout: time.Second,
	})
	w.Start()

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.calls > 0
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	w := NewWorker(newMemorySource(), &fakeReconciler{}, nil, WorkerConfig{
		WorkerCount: 1,
		PopTimeout:  10 * time.Millisecond,
	})
	w.Start()
	w.Stop()
	w.Stop()
}
