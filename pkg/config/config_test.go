package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Nil(t, cfg.Server.TrustedProxies)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, "demo_quiz", cfg.RateLimit.DemoQuiz.Name)
	assert.Equal(t, time.Hour, cfg.RateLimit.DemoQuiz.Window)
	assert.Equal(t, int64(100), cfg.Quota.StarterLimit)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("RETENTION_DAYS", "30")
	t.Setenv("RATE_LIMIT_FORM_SUBMIT", "3")
	t.Setenv("RATE_LIMIT_FORM_SUBMIT_WINDOW", "10s")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 3, cfg.RateLimit.FormSubmit.Requests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.FormSubmit.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsBadRetention(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Retention.Days = 0
	assert.Error(t, cfg.Validate())
}
