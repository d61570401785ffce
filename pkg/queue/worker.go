package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	model "studysphere/app/models/payment"
	"studysphere/pkg/logger"
	"studysphere/pkg/payment"
)

// Source 任务出队接口
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error)
	Release(ctx context.Context, reference string) error
}

// Reconciler 对账接口
type Reconciler interface {
	Reconcile(ctx context.Context, reference string) (model.Status, error)
}

// Worker 对账工作器组
type Worker struct {
	source     Source
	reconciler Reconciler
	stopChan   chan struct{}
	stopOnce   sync.Once
	metrics    *QueueMetrics
	wg         sync.WaitGroup
	config     WorkerConfig
}

// WorkerConfig 工作器配置
type WorkerConfig struct {
	WorkerCount     int           // 并发工作器数量
	TaskTimeout     time.Duration // 单次对账超时
	PopTimeout      time.Duration // 出队阻塞时间，决定响应停止信号的速度
	RetryInterval   time.Duration // 出队出错后的等待时间
	ShutdownTimeout time.Duration // 关闭超时时间
}

// NewWorker 创建工作器组
func NewWorker(source Source, reconciler Reconciler, metrics *QueueMetrics, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 20 * time.Second
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = 2 * time.Second
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}

	return &Worker{
		source:     source,
		reconciler: reconciler,
		stopChan:   make(chan struct{}),
		metrics:    metrics,
		config:     config,
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

// startWorker 启动单个工作器
func (w *Worker) startWorker(id int) {
	defer w.wg.Done()

	logger.InfoString("Worker", "Start", fmt.Sprintf("Worker %d started", id))

	for {
		select {
		case <-w.stopChan:
			logger.InfoString("Worker", "Stop", fmt.Sprintf("Worker %d stopping", id))
			return
		default:
		}

		if err := w.processNextTask(); err != nil {
			logger.ErrorString("Worker", "Error", fmt.Sprintf("Worker %d error: %v", id, err))
			select {
			case <-w.stopChan:
			case <-time.After(w.config.RetryInterval):
			}
		}
	}
}

// processNextTask 取出并处理一个任务，队列为空时返回 nil
func (w *Worker) processNextTask() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.PopTimeout+time.Second)
	task, err := w.source.Pop(ctx, w.config.PopTimeout)
	cancel()
	if err != nil {
		return fmt.Errorf("pop task error: %w", err)
	}
	if task == nil {
		return nil
	}

	w.handleTask(task)
	return nil
}

// handleTask 对账单个引用
// 网关错误只记录，下次扫描会重新入队
func (w *Worker) handleTask(task *ReconcileTask) {
	w.metrics.RecordWaitTime(task.EnqueuedAt)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), w.config.TaskTimeout)
	defer cancel()

	status, err := w.reconciler.Reconcile(ctx, task.Reference)
	w.metrics.RecordProcessLatency(time.Since(start))

	if releaseErr := w.source.Release(context.Background(), task.Reference); releaseErr != nil {
		logger.WarnString("Worker", "Release", releaseErr.Error())
	}

	switch {
	case err == nil:
		w.metrics.RecordSuccess(OpProcess)
		logger.Debug("Worker",
			zap.String("provider_reference", task.Reference),
			zap.String("source", string(task.Source)),
			zap.String("status", string(status)),
		)
	case payment.IsNotFound(err):
		w.metrics.RecordError(OpProcess)
		logger.WarnString("Worker", "Reconcile", err.Error())
	case payment.IsGateway(err):
		// 记录仍未终态，交给下一轮 sweeper
		w.metrics.RecordError(OpProcess)
		logger.WarnString("Worker", "Reconcile", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		w.metrics.RecordError(OpProcess)
		logger.WarnString("Worker", "Reconcile", fmt.Sprintf("%s: timed out", task.Reference))
	default:
		w.metrics.RecordError(OpProcess)
		logger.ErrorString("Worker", "Reconcile", err.Error())
	}
}

// Stop 优雅关闭工作器组
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Worker", "Stop", "All workers stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Worker", "Stop", "Worker shutdown timed out")
	}
}
