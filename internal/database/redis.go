package database

import (
	"context"
	"fmt"
	"time"

	"leadflow/pkg/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建 redis 客户端；限流、配额和工作流队列共用
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// PingRedis 启动时检查连接
func PingRedis(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("连接Redis失败: %w", err)
	}
	return nil
}
