package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadflow/internal/models"
	"leadflow/pkg/config"
	apperrors "leadflow/pkg/errors"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Usage 租户本月用量
type Usage struct {
	Plan      string    `json:"plan"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Unlimited bool      `json:"unlimited"`
	ResetAt   time.Time `json:"reset_at"`
}

// Reservation 已占用的一个配额名额，创建失败时归还
type Reservation struct {
	once    sync.Once
	release func(ctx context.Context)
}

// Release 归还名额，多次调用只生效一次
func (r *Reservation) Release(ctx context.Context) {
	if r == nil || r.release == nil {
		return
	}
	r.once.Do(func() { r.release(ctx) })
}

// QuotaGuard 租户月度线索配额
type QuotaGuard interface {
	Reserve(ctx context.Context, tenant *models.Tenant) (*Reservation, error)
	Usage(ctx context.Context, tenant *models.Tenant) (Usage, error)
}

// 原子地计数并检查上限，超限时回退
var reserveScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIREAT", KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if limit > 0 and current > limit then
	redis.call("DECR", KEYS[1])
	return {0, current - 1}
end
return {1, current}
`)

// RedisQuota 按自然月（UTC）计数；redis 不可用时放行
type RedisQuota struct {
	client *redis.Client
	prefix string
	limits config.QuotaConfig
	log    *logrus.Logger
	now    func() time.Time
}

// NewRedisQuota 创建配额检查器
func NewRedisQuota(client *redis.Client, prefix string, limits config.QuotaConfig, log *logrus.Logger) *RedisQuota {
	return &RedisQuota{client: client, prefix: prefix, limits: limits, log: log, now: time.Now}
}

// LimitFor 套餐上限；<= 0 表示不限
func LimitFor(limits config.QuotaConfig, plan string) int64 {
	switch plan {
	case models.PlanEnterprise:
		return limits.EnterpriseLimit
	case models.PlanPro:
		return limits.ProLimit
	default:
		return limits.StarterLimit
	}
}

// periodStart 当月第一天 00:00 UTC
func periodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (q *RedisQuota) key(tenantID string, now time.Time) string {
	return fmt.Sprintf("%s:usage:%s:%s", q.prefix, tenantID, now.UTC().Format("2006-01"))
}

// Reserve 占用一个名额；超出上限返回 QuotaExceeded
func (q *RedisQuota) Reserve(ctx context.Context, tenant *models.Tenant) (*Reservation, error) {
	now := q.now()
	limit := LimitFor(q.limits, tenant.Plan)
	resetAt := periodStart(now).AddDate(0, 1, 0)
	key := q.key(tenant.OrgID, now)

	// 多保留一周，便于月初查看上月用量
	expireAt := resetAt.AddDate(0, 0, 7).UnixMilli()
	res, err := reserveScript.Run(ctx, q.client, []string{key}, limit, expireAt).Result()
	if err != nil {
		q.log.WithError(err).WithField("tenant_id", tenant.OrgID).Warn("Quota store unavailable, allowing submission")
		return &Reservation{}, nil
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		q.log.WithField("result", res).Warn("Unexpected quota reply, allowing submission")
		return &Reservation{}, nil
	}
	if allowed, _ := values[0].(int64); allowed == 0 {
		return nil, apperrors.QuotaExceeded(limit, resetAt)
	}

	return &Reservation{release: func(ctx context.Context) {
		if err := q.client.Decr(ctx, key).Err(); err != nil {
			q.log.WithError(err).WithField("tenant_id", tenant.OrgID).Warn("Failed to release quota reservation")
		}
	}}, nil
}

// Usage 本月用量
func (q *RedisQuota) Usage(ctx context.Context, tenant *models.Tenant) (Usage, error) {
	now := q.now()
	limit := LimitFor(q.limits, tenant.Plan)
	usage := Usage{
		Plan:      tenant.Plan,
		Limit:     limit,
		Unlimited: limit <= 0,
		ResetAt:   periodStart(now).AddDate(0, 1, 0),
	}

	used, err := q.client.Get(ctx, q.key(tenant.OrgID, now)).Int64()
	if err != nil && err != redis.Nil {
		return usage, apperrors.Downstream("usage store", err)
	}
	usage.Used = used
	return usage, nil
}
