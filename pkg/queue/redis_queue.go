package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"studysphere/pkg/redis"
)

// TaskSource 任务来源
type TaskSource string

const (
	SourceRecheck TaskSource = "recheck" // 用户主动复查
	SourceSweep   TaskSource = "sweep"   // 定时扫描
)

// ReconcileTask 对账任务，只携带网关引用
type ReconcileTask struct {
	Reference  string     `json:"reference"`
	Source     TaskSource `json:"source"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Prefix    string
	RateLimit int // 每秒入队数
	RateBurst int
	DedupeTTL time.Duration
}

// QueueService Redis 列表实现的对账队列
// 同一引用在 DedupeTTL 内只会入队一次
type QueueService struct {
	client      *redis.RedisClient
	prefix      string
	dedupeTTL   time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewQueueService 创建队列服务
func NewQueueService(client *redis.RedisClient, cfg QueueConfig, metrics *QueueMetrics) *QueueService {
	if cfg.Prefix == "" {
		cfg.Prefix = "studysphere:reconcile"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst < cfg.RateLimit {
		cfg.RateBurst = cfg.RateLimit
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = time.Minute
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}

	return &QueueService{
		client:      client,
		prefix:      cfg.Prefix,
		dedupeTTL:   cfg.DedupeTTL,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics:     metrics,
	}
}

func (q *QueueService) tasksKey() string {
	return q.prefix + ":tasks"
}

func (q *QueueService) dedupeKey(reference string) string {
	return fmt.Sprintf("%s:pending:%s", q.prefix, reference)
}

// Push 入队，返回 false 表示该引用已在队列中
func (q *QueueService) Push(ctx context.Context, task *ReconcileTask) (bool, error) {
	if task == nil || task.Reference == "" {
		return false, errors.New("reconcile task requires a reference")
	}

	if err := q.rateLimiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	taskJSON, err := json.Marshal(task)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("failed to marshal task: %w", err)
	}

	fresh, err := q.client.SetNX(ctx, q.dedupeKey(task.Reference), task.EnqueuedAt.Unix(), q.dedupeTTL)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("failed to mark task: %w", err)
	}
	if !fresh {
		q.metrics.RecordDeduped()
		return false, nil
	}

	if err := q.client.Client.LPush(ctx, q.tasksKey(), taskJSON).Err(); err != nil {
		q.client.Del(ctx, q.dedupeKey(task.Reference))
		q.metrics.RecordError(OpPush)
		return false, fmt.Errorf("failed to push task: %w", err)
	}

	q.metrics.RecordSuccess(OpPush)
	return true, nil
}

// Pop 阻塞等待任务，超时返回 nil, nil
func (q *QueueService) Pop(ctx context.Context, timeout time.Duration) (*ReconcileTask, error) {
	result, err := q.client.Client.BRPop(ctx, timeout, q.tasksKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to pop task from queue: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("invalid result from queue")
	}

	var task ReconcileTask
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Release 处理结束后移除去重标记，允许再次入队
func (q *QueueService) Release(ctx context.Context, reference string) error {
	return q.client.Client.Del(ctx, q.dedupeKey(reference)).Err()
}

// Len 队列长度
func (q *QueueService) Len(ctx context.Context) (int64, error) {
	return q.client.Client.LLen(ctx, q.tasksKey()).Result()
}

// Ping 检查队列服务健康状态
func (q *QueueService) Ping(ctx context.Context) error {
	return q.client.Ping(ctx)
}

// Metrics 队列指标
func (q *QueueService) Metrics() *QueueMetrics {
	return q.metrics
}
