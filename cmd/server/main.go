package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow/internal/database"
	"leadflow/internal/router"
	"leadflow/internal/services"
	"leadflow/pkg/config"
	"leadflow/pkg/jwt"
	"leadflow/pkg/logger"
	"leadflow/pkg/metrics"
	"leadflow/pkg/queue"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	appLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger.Info("Starting leadflow...")

	// 初始化数据库
	db, err := database.Open(cfg.Database, cfg.Server.Mode)
	if err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	if err := database.Migrate(db, appLogger); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := seedData(context.Background(), db, appLogger); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// Redis：限流、配额、工作流队列与事件推送
	redisClient := database.NewRedis(cfg.Redis)
	if err := database.PingRedis(context.Background(), redisClient); err != nil {
		appLogger.Fatalf("Failed to connect Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()
	redisQueue := queue.NewRedisQueue(redisClient, cfg.Redis.Prefix)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	dispatcher := services.NewDispatcher(cfg.Workflow.Workers, cfg.Workflow.QueueSize, cfg.Notify.Timeout*3, services.LogSink(appLogger), m)
	defer dispatcher.Close()

	notifier := buildNotifier(cfg, redisQueue, m)
	quota := services.NewRedisQuota(redisClient, cfg.Redis.Prefix, cfg.Quota, appLogger)

	admission := services.NewAdmissionGuard(services.AdmissionDeps{
		DB:         db,
		Bots:       services.NewBotDetector(cfg.Bot, cfg.Notify.Timeout, appLogger),
		Limiter:    services.NewRedisRateLimiter(redisClient, cfg.Redis.Prefix, appLogger),
		Quota:      quota,
		Starter:    services.NewQueueWorkflowStarter(redisQueue),
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Budgets:    cfg.RateLimit,
		Definition: cfg.Workflow.Definition,
		Log:        appLogger,
		Metrics:    m,
	})

	// 保留期清理调度器
	retention := services.NewRetentionService(db, cfg.Retention, appLogger, m)
	retentionScheduler := services.NewRetentionScheduler(retention, cfg.Retention.Schedule, appLogger)
	if err := retentionScheduler.Start(); err != nil {
		appLogger.Errorf("Failed to start retention scheduler: %v", err)
		// 不影响主服务启动
	}
	defer retentionScheduler.Stop()

	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(router.Deps{
		Config:     cfg,
		Log:        appLogger,
		Metrics:    m,
		JWT:        jwt.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer),
		Queue:      redisQueue,
		Tenants:    services.NewTenantResolver(db, cfg.Tenant),
		Admission:  admission,
		Lifecycle:  services.NewLeadLifecycle(db, notifier, dispatcher, appLogger),
		Leads:      services.NewLeadService(db, quota, appLogger),
		Workflows:  services.NewWorkflowService(db),
		Knowledge:  services.NewKnowledgeService(db),
		TenantCfgs: services.NewTenantConfigService(db),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()
	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}

// buildNotifier 事件推送总是开启；Slack 只接收销售提醒，邮件中继只接收审批后的草稿
func buildNotifier(cfg *config.Config, q *queue.RedisQueue, m *metrics.Metrics) services.Notifier {
	notifiers := services.CompositeNotifier{services.NewEventPublisher(q)}
	if cfg.Notify.SlackWebhookURL != "" {
		slack := services.NewSlackNotifier(cfg.Notify.SlackWebhookURL, cfg.Notify.Timeout, m)
		notifiers = append(notifiers, services.OnlyKinds(slack, services.NotifySalesAlert))
	}
	if cfg.Notify.EmailRelayURL != "" {
		email := services.NewWebhookNotifier("email", cfg.Notify.EmailRelayURL, cfg.Notify.Timeout, m)
		notifiers = append(notifiers, services.OnlyKinds(email, services.NotifyDraftApproved))
	}
	return notifiers
}
