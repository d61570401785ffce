package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	model "studysphere/app/models/payment"
	"studysphere/pkg/logger"
)

// StaleLister 查询长时间未终结的支付
type StaleLister interface {
	ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error)
}

// Enqueuer 入队接口
type Enqueuer interface {
	Push(ctx context.Context, task *ReconcileTask) (bool, error)
}

// SweeperConfig 扫描配置
type SweeperConfig struct {
	Interval time.Duration
	StaleAge time.Duration // 创建超过该时长才会被扫描
	Batch    int
}

// Sweeper 定时把未终结的支付放入对账队列
// 前端放弃轮询的支付最终也会被确认
type Sweeper struct {
	lister   StaleLister
	queue    Enqueuer
	config   SweeperConfig
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper 创建扫描器
func NewSweeper(lister StaleLister, queue Enqueuer, config SweeperConfig) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.StaleAge <= 0 {
		config.StaleAge = 2 * time.Minute
	}
	if config.Batch <= 0 {
		config.Batch = 100
	}

	return &Sweeper{
		lister:   lister,
		queue:    queue,
		config:   config,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// SweepOnce 执行一次扫描，返回新入队的数量
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stale, err := s.lister.ListStale(ctx, s.now().Add(-s.config.StaleAge), s.config.Batch)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	queued := 0
	for _, p := range stale {
		ok, err := s.queue.Push(ctx, &ReconcileTask{
			Reference:  p.ProviderReference,
			Source:     SourceSweep,
			EnqueuedAt: s.now(),
		})
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	return queued, nil
}

// Start 启动定时扫描
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.config.Interval)
				n, err := s.SweepOnce(ctx)
				cancel()
				if err != nil {
					logger.ErrorString("Sweeper", "Sweep", err.Error())
					continue
				}
				if n > 0 {
					logger.InfoString("Sweeper", "Sweep", fmt.Sprintf("queued %d stale payments", n))
				}
			}
		}
	}()
}

// Stop 停止扫描
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
