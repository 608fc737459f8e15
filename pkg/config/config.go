package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Tenant    TenantConfig
	RateLimit RateLimitConfig
	Quota     QuotaConfig
	Retention RetentionConfig
	Workflow  WorkflowConfig
	Notify    NotifyConfig
	Bot       BotConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port string
	Mode string

	// TrustedProxies 允许携带 X-Forwarded-For 的反向代理地址或网段；为空时只信任连接的对端地址
	TrustedProxies []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN 返回 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type JWTConfig struct {
	SecretKey string // 身份令牌签名密钥
	Issuer    string // 期望的签发方，为空则不校验
}

type LogConfig struct {
	Level      string
	FilePath   string
	MaxSize    int    // MB
	MaxBackups int    // 保留的备份文件数
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩
	Format     string // json 或 text
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string // 所有键的前缀
}

// Addr 返回 host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // 小时
}

type TenantConfig struct {
	BaseDomain string // 子域名解析的根域名，如 leadflow.io
}

// Budget 限流预算：窗口内允许的请求数
type Budget struct {
	Name     string
	Requests int
	Window   time.Duration
}

type RateLimitConfig struct {
	DemoQuiz   Budget
	QuizSubmit Budget
	FormSubmit Budget
}

type QuotaConfig struct {
	StarterLimit    int64
	ProLimit        int64
	EnterpriseLimit int64 // <= 0 表示不限
}

type RetentionConfig struct {
	Days     int
	Schedule string // cron 表达式
}

type WorkflowConfig struct {
	Definition    string // 资格审查工作流名称
	Workers       int    // 异步派发的并发数
	QueueSize     int
	InternalToken string // 工作流回调使用的内部令牌
}

type NotifyConfig struct {
	SlackWebhookURL string
	EmailRelayURL   string
	Timeout         time.Duration
}

type BotConfig struct {
	TurnstileSecret string
	VerifyURL       string
	BlockedAgents   []string
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// 获取环境变量，如果不存在则使用默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 获取环境变量转换为int
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// 获取环境变量转换为bool
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// 获取环境变量转换为字符串数组（逗号分隔）
func getEnvAsStringArray(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// Load 从环境变量（以及可选的 .env 文件）加载配置，由进程入口调用一次
func Load() (*Config, error) {
	// .env 不存在时直接使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Mode: getEnv("SERVER_MODE", "debug"),

			TrustedProxies: getEnvAsStringArray("SERVER_TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "leadflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
			Format:     getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "leadflow"),
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsStringArray("CORS_ALLOW_ORIGINS", []string{"*"}),
			AllowMethods:     getEnvAsStringArray("CORS_ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowHeaders:     getEnvAsStringArray("CORS_ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"}),
			ExposeHeaders:    getEnvAsStringArray("CORS_EXPOSE_HEADERS", []string{"Content-Length", "Content-Type", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 12),
		},
		Tenant: TenantConfig{
			BaseDomain: getEnv("TENANT_BASE_DOMAIN", "localhost"),
		},
		RateLimit: RateLimitConfig{
			DemoQuiz: Budget{
				Name:     "demo_quiz",
				Requests: getEnvAsInt("RATE_LIMIT_DEMO_QUIZ", 5),
				Window:   getEnvAsDuration("RATE_LIMIT_DEMO_QUIZ_WINDOW", time.Hour),
			},
			QuizSubmit: Budget{
				Name:     "quiz_submit",
				Requests: getEnvAsInt("RATE_LIMIT_QUIZ_SUBMIT", 10),
				Window:   getEnvAsDuration("RATE_LIMIT_QUIZ_SUBMIT_WINDOW", time.Hour),
			},
			FormSubmit: Budget{
				Name:     "form_submit",
				Requests: getEnvAsInt("RATE_LIMIT_FORM_SUBMIT", 30),
				Window:   getEnvAsDuration("RATE_LIMIT_FORM_SUBMIT_WINDOW", time.Minute),
			},
		},
		Quota: QuotaConfig{
			StarterLimit:    getEnvAsInt64("QUOTA_STARTER_LEADS", 100),
			ProLimit:        getEnvAsInt64("QUOTA_PRO_LEADS", 1000),
			EnterpriseLimit: getEnvAsInt64("QUOTA_ENTERPRISE_LEADS", 0),
		},
		Retention: RetentionConfig{
			Days:     getEnvAsInt("RETENTION_DAYS", 90),
			Schedule: getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
		},
		Workflow: WorkflowConfig{
			Definition:    getEnv("WORKFLOW_DEFINITION", "lead-qualification"),
			Workers:       getEnvAsInt("WORKFLOW_DISPATCH_WORKERS", 4),
			QueueSize:     getEnvAsInt("WORKFLOW_DISPATCH_QUEUE", 256),
			InternalToken: getEnv("WORKFLOW_INTERNAL_TOKEN", ""),
		},
		Notify: NotifyConfig{
			SlackWebhookURL: getEnv("NOTIFY_SLACK_WEBHOOK_URL", ""),
			EmailRelayURL:   getEnv("NOTIFY_EMAIL_RELAY_URL", ""),
			Timeout:         getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Bot: BotConfig{
			TurnstileSecret: getEnv("TURNSTILE_SECRET", ""),
			VerifyURL:       getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			BlockedAgents:   getEnvAsStringArray("BOT_BLOCKED_AGENTS", []string{"curl", "wget", "python-requests", "scrapy", "headlesschrome", "phantomjs"}),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvAsBool("METRICS_ENABLED", true),
			Namespace: getEnv("METRICS_NAMESPACE", "leadflow"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 启动时的一次性校验
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.Retention.Days)
	}
	for _, b := range []Budget{c.RateLimit.DemoQuiz, c.RateLimit.QuizSubmit, c.RateLimit.FormSubmit} {
		if b.Requests <= 0 || b.Window <= 0 {
			return fmt.Errorf("rate limit budget %s must have positive requests and window", b.Name)
		}
	}
	if c.Workflow.Workers <= 0 {
		return fmt.Errorf("WORKFLOW_DISPATCH_WORKERS must be positive")
	}
	return nil
}
