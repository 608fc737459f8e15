package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"leadflow/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Decision 一次限流判定的结果
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter 按客户端与预算名做限流
type RateLimiter interface {
	Allow(ctx context.Context, key string, budget config.Budget) (Decision, error)
}

// 固定窗口：首次计数时设置过期，返回当前计数与剩余毫秒数
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter 基于 redis 的固定窗口限流；redis 不可用时放行
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
	now    func() time.Time
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(client *redis.Client, prefix string, log *logrus.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, log: log, now: time.Now}
}

// ClientKey 客户端地址做哈希后作为限流键，避免在 redis 中保存原始 IP
func ClientKey(addr string) string {
	sum := blake2b.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:16])
}

// Allow 计数并判断是否超出预算
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, budget config.Budget) (Decision, error) {
	limit := int64(budget.Requests)
	redisKey := fmt.Sprintf("%s:ratelimit:%s:%s", l.prefix, budget.Name, key)

	res, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, budget.Window.Milliseconds()).Result()
	if err != nil {
		l.log.WithError(err).WithField("budget", budget.Name).Warn("Rate limiter unavailable, allowing request")
		return l.open(limit, budget.Window), nil
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		l.log.WithField("result", res).Warn("Unexpected rate limiter reply, allowing request")
		return l.open(limit, budget.Window), nil
	}
	count, _ := values[0].(int64)
	ttlMillis, _ := values[1].(int64)

	ttl := time.Duration(ttlMillis) * time.Millisecond
	decision := Decision{
		Limit:   limit,
		ResetAt: l.now().Add(ttl),
	}
	if count > limit {
		decision.Remaining = 0
		decision.RetryAfter = ttl
		return decision, nil
	}
	decision.Allowed = true
	decision.Remaining = limit - count
	return decision, nil
}

func (l *RedisRateLimiter) open(limit int64, window time.Duration) Decision {
	return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: l.now().Add(window)}
}
