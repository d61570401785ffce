// Package redis 提供 Redis 连接与常用操作
// 主实例用于限流和用户信息缓存，队列实例用于对账队列
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"studysphere/pkg/logger"
)

const (
	DefaultPoolSize     = 100
	DefaultTimeout      = 5 * time.Second
	DefaultMinIdleConns = 10
	DefaultMaxRetries   = 3
	DefaultIdleTimeout  = 5 * time.Minute
)

// ErrCacheMiss 缓存中不存在该键
var ErrCacheMiss = errors.New("redis: cache miss")

// RedisInstance Redis 实例类型
type RedisInstance string

const (
	MainDB  RedisInstance = "main"  // 限流、缓存
	QueueDB RedisInstance = "queue" // 对账队列
)

// RedisClient Redis 客户端封装
type RedisClient struct {
	Client *redis.Client
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address      string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration
}

type RedisManager struct {
	instances map[RedisInstance]*RedisClient
	mutex     sync.RWMutex
}

var (
	once    sync.Once
	Manager *RedisManager
	Redis   *RedisClient
)

// NewClient 创建 Redis 客户端并测试连接
func NewClient(config RedisConfig) (*RedisClient, error) {
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultPoolSize
	}
	if config.MinIdleConns <= 0 {
		config.MinIdleConns = DefaultMinIdleConns
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	rds := &RedisClient{
		Client: redis.NewClient(&redis.Options{
			Addr:         config.Address,
			Username:     config.Username,
			Password:     config.Password,
			DB:           config.DB,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,

			PoolTimeout:     config.Timeout,
			ConnMaxIdleTime: DefaultIdleTimeout,
			ConnMaxLifetime: 24 * time.Hour,

			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,

			MaxRetries:      DefaultMaxRetries,
			MinRetryBackoff: 8 * time.Millisecond,
			MaxRetryBackoff: 512 * time.Millisecond,
		}),
	}

	if err := rds.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("redis %s db %d: %w", config.Address, config.DB, err)
	}

	return rds, nil
}

// Ping 测试连接
func (rds *RedisClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return rds.Client.Ping(ctx).Err()
}

// SetJSON 序列化后写入
func (rds *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return rds.Client.Set(ctx, key, data, expiration).Err()
}

// GetJSON 读取并反序列化，不存在时返回 ErrCacheMiss
func (rds *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	data, err := rds.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		logger.ErrorString("Redis", "GetJSON", err.Error())
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetNX 键不存在时写入，返回是否写入成功
func (rds *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return rds.Client.SetNX(ctx, key, value, expiration).Result()
}

// Del 删除键
func (rds *RedisClient) Del(ctx context.Context, keys ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	if err := rds.Client.Del(ctx, keys...).Err(); err != nil {
		logger.ErrorString("Redis", "Del", err.Error())
		return false
	}
	return true
}

// Close 关闭连接
func (rds *RedisClient) Close() error {
	return rds.Client.Close()
}

// InitRedis 初始化主实例和队列实例
func InitRedis(address, username, password string, mainDB, queueDB int) error {
	var initErr error
	once.Do(func() {
		manager := &RedisManager{
			instances: make(map[RedisInstance]*RedisClient),
		}

		for instance, db := range map[RedisInstance]int{MainDB: mainDB, QueueDB: queueDB} {
			client, err := NewClient(RedisConfig{
				Address:  address,
				Username: username,
				Password: password,
				DB:       db,
			})
			if err != nil {
				initErr = err
				return
			}
			manager.instances[instance] = client
		}

		Manager = manager
		Redis = manager.instances[MainDB]
	})
	return initErr
}

// GetRedis 获取指定实例，未找到时返回主实例
func GetRedis(instance RedisInstance) *RedisClient {
	if Manager == nil {
		return Redis
	}

	Manager.mutex.RLock()
	defer Manager.mutex.RUnlock()

	if client, ok := Manager.instances[instance]; ok {
		return client
	}
	return Redis
}
