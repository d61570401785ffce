package bootstrap

import (
	"time"

	"studysphere/pkg/app"
	"studysphere/pkg/config"
	"studysphere/pkg/logger"
	"studysphere/pkg/queue"
	"studysphere/pkg/redis"
)

// Background 后台对账任务
type Background struct {
	Queue   *queue.QueueService
	Worker  *queue.Worker
	Sweeper *queue.Sweeper
}

// SetupQueue 启动对账队列、worker 和扫描器
// Redis 未初始化时返回 nil，recheck 退化为同步查询
func SetupQueue(services *Services) *Background {
	client := redis.GetRedis(redis.QueueDB)
	if client == nil {
		logger.WarnString("Queue", "Setup", "Redis 未初始化，后台对账未启动")
		return nil
	}

	metrics := queue.NewQueueMetrics()
	queueService := queue.NewQueueService(client, queue.QueueConfig{
		Prefix:    config.GetString("redis.queue_prefix"),
		RateLimit: config.GetInt("queue.rate_limit"),
		RateBurst: config.GetInt("queue.rate_burst"),
		DedupeTTL: app.Seconds("queue.dedupe_ttl", 60),
	}, metrics)

	worker := queue.NewWorker(queueService, services.Reconciliation, metrics, queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count"),
		TaskTimeout:     app.Seconds("queue.task_timeout", 20),
		ShutdownTimeout: 30 * time.Second,
	})

	sweeper := queue.NewSweeper(services.Repository, queueService, queue.SweeperConfig{
		Interval: app.Seconds("queue.sweep_interval", 60),
		StaleAge: app.Seconds("queue.sweep_stale_age", 120),
		Batch:    config.GetInt("queue.sweep_batch"),
	})

	worker.Start()
	sweeper.Start()

	logger.InfoString("Queue", "Setup", "对账队列启动成功")

	return &Background{Queue: queueService, Worker: worker, Sweeper: sweeper}
}

// Stop 先停止扫描再停止 worker
func (b *Background) Stop() {
	if b == nil {
		return
	}
	b.Sweeper.Stop()
	b.Worker.Stop()
}
