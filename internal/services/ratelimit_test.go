package services

import (
	"context"
	"testing"
	"time"

	"leadflow/pkg/config"
	"leadflow/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRateLimiter_ExceedingBudget(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, "test", logger.NewNop())
	budget := config.Budget{Name: "demo_quiz", Requests: 3, Window: time.Hour}
	key := ClientKey("203.0.113.7")

	for i := 1; i <= 3; i++ {
		d, err := limiter.Allow(ctx, key, budget)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.EqualValues(t, 3-i, d.Remaining)
		assert.EqualValues(t, 3, d.Limit)
	}

	d, err := limiter.Allow(ctx, key, budget)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Hour)
	assert.True(t, d.ResetAt.After(time.Now()))
}

func TestRateLimiter_BudgetsAndClientsAreIndependent(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, "test", logger.NewNop())
	demo := config.Budget{Name: "demo_quiz", Requests: 1, Window: time.Hour}
	form := config.Budget{Name: "form_submit", Requests: 1, Window: time.Minute}

	d, _ := limiter.Allow(ctx, ClientKey("a"), demo)
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, ClientKey("a"), form)
	assert.True(t, d.Allowed, "other budget has its own counter")
	d, _ = limiter.Allow(ctx, ClientKey("b"), demo)
	assert.True(t, d.Allowed, "other client has its own counter")
	d, _ = limiter.Allow(ctx, ClientKey("a"), demo)
	assert.False(t, d.Allowed)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, "test", logger.NewNop())
	budget := config.Budget{Name: "quiz_submit", Requests: 1, Window: time.Minute}

	d, _ := limiter.Allow(ctx, "k", budget)
	require.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "k", budget)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, _ = limiter.Allow(ctx, "k", budget)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client, mr := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, "test", logger.NewNop())
	mr.Close()

	d, err := limiter.Allow(context.Background(), "k", config.Budget{Name: "demo_quiz", Requests: 5, Window: time.Hour})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.EqualValues(t, 5, d.Remaining)
}

func TestClientKey(t *testing.T) {
	assert.Equal(t, ClientKey("10.0.0.1"), ClientKey("10.0.0.1"))
	assert.NotEqual(t, ClientKey("10.0.0.1"), ClientKey("10.0.0.2"))
	assert.Len(t, ClientKey("10.0.0.1"), 32)
	assert.NotContains(t, ClientKey("10.0.0.1"), "10.0.0.1")
}
