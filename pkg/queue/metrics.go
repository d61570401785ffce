package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation 定义指标操作类型
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// record 记录延迟数据
func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// LatencySnapshot 延迟统计快照，单位毫秒
type LatencySnapshot struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg_ms"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LatencySnapshot{
		Count: s.count,
		Min:   millis(s.min),
		Max:   millis(s.max),
	}
	if s.count > 0 {
		snap.Avg = millis(s.total) / float64(s.count)
	}
	return snap
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// QueueMetrics 对账队列指标
type QueueMetrics struct {
	pushed    atomic.Int64
	deduped   atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	errors    sync.Map // map[MetricOperation]*atomic.Int64

	pushLatency    LatencyStats
	processLatency LatencyStats
	waitLatency    LatencyStats // 入队到开始处理
}

// NewQueueMetrics 创建指标收集器
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{}
}

// RecordSuccess 记录成功操作
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	switch op {
	case OpPush:
		m.pushed.Add(1)
	case OpProcess:
		m.processed.Add(1)
	}
}

// RecordDeduped 记录被去重的入队
func (m *QueueMetrics) RecordDeduped() {
	m.deduped.Add(1)
}

// RecordError 记录失败操作
func (m *QueueMetrics) RecordError(op MetricOperation) {
	if op == OpProcess {
		m.failed.Add(1)
	}
	counter, _ := m.errors.LoadOrStore(op, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// RecordPushLatency 记录入队延迟
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordProcessLatency 记录处理延迟
func (m *QueueMetrics) RecordProcessLatency(d time.Duration) {
	m.processLatency.record(d)
}

// RecordWaitTime 记录任务在队列中的等待时间
func (m *QueueMetrics) RecordWaitTime(enqueuedAt time.Time) {
	if enqueuedAt.IsZero() {
		return
	}
	m.waitLatency.record(time.Since(enqueuedAt))
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Pushed         int64                     `json:"pushed"`
	Deduped        int64                     `json:"deduped"`
	Processed      int64                     `json:"processed"`
	Failed         int64                     `json:"failed"`
	Errors         map[MetricOperation]int64 `json:"errors"`
	PushLatency    LatencySnapshot           `json:"push_latency"`
	ProcessLatency LatencySnapshot           `json:"process_latency"`
	WaitLatency    LatencySnapshot           `json:"wait_latency"`
}

// Snapshot 获取当前指标
func (m *QueueMetrics) Snapshot() MetricsSnapshot {
	errs := make(map[MetricOperation]int64)
	m.errors.Range(func(key, value interface{}) bool {
		errs[key.(MetricOperation)] = value.(*atomic.Int64).Load()
		return true
	})

	return MetricsSnapshot{
		Pushed:         m.pushed.Load(),
		Deduped:        m.deduped.Load(),
		Processed:      m.processed.Load(),
		Failed:         m.failed.Load(),
		Errors:         errs,
		PushLatency:    m.pushLatency.snapshot(),
		ProcessLatency: m.processLatency.snapshot(),
		WaitLatency:    m.waitLatency.snapshot(),
	}
}
