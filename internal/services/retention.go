package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadflow/internal/repository"
	"leadflow/pkg/config"
	"leadflow/pkg/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SweepReport 一次保留期清理的结果
type SweepReport struct {
	Tenants int                    `json:"tenants"`
	Counts  repository.PurgeCounts `json:"counts"`
	Failed  []string               `json:"failed,omitempty"` // 清理失败的租户
}

// RetentionService 物理删除超过保留期的软删除数据
type RetentionService struct {
	db      *gorm.DB
	tenants *repository.TenantStore
	maxAge  time.Duration
	log     *logrus.Logger
	metrics *metrics.Metrics
}

// NewRetentionService 创建清理服务
func NewRetentionService(db *gorm.DB, cfg config.RetentionConfig, log *logrus.Logger, m *metrics.Metrics) *RetentionService {
	return &RetentionService{
		db:      db,
		tenants: repository.NewTenantStore(db),
		maxAge:  time.Duration(cfg.Days) * 24 * time.Hour,
		log:     log,
		metrics: m,
	}
}

// Sweep 逐个租户清理；单个租户失败不影响其他租户
func (s *RetentionService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return report, fmt.Errorf("加载租户失败: %w", err)
	}

	for _, tenant := range tenants {
		repo, err := repository.New(s.db, repository.SystemScope(tenant.OrgID))
		if err != nil {
			report.Failed = append(report.Failed, tenant.OrgID)
			continue
		}
		counts, err := repo.PurgeDeleted(ctx, s.maxAge)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", tenant.OrgID).Error("Retention sweep failed for tenant")
			report.Failed = append(report.Failed, tenant.OrgID)
			continue
		}
		report.Tenants++
		report.Counts.Leads += counts.Leads
		report.Counts.Workflows += counts.Workflows
		report.Counts.Documents += counts.Documents
	}

	s.metrics.Purged("leads", report.Counts.Leads)
	s.metrics.Purged("workflows", report.Counts.Workflows)
	s.metrics.Purged("documents", report.Counts.Documents)

	s.log.WithFields(logrus.Fields{
		"tenants":   report.Tenants,
		"leads":     report.Counts.Leads,
		"workflows": report.Counts.Workflows,
		"documents": report.Counts.Documents,
		"failed":    len(report.Failed),
	}).Info("Retention sweep finished")
	return report, nil
}

// RetentionScheduler 按 cron 表达式定期执行清理
type RetentionScheduler struct {
	service   *RetentionService
	cron      *cron.Cron
	schedule  string
	log       *logrus.Logger
	mu        sync.Mutex
	isRunning bool
}

// NewRetentionScheduler 创建调度器；表达式为标准 5 段格式
func NewRetentionScheduler(service *RetentionService, schedule string, log *logrus.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		service:  service,
		cron:     cron.New(),
		schedule: schedule,
		log:      log,
	}
}

// Start 启动调度器
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("调度器已经在运行")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.service.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("Retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("无效的清理计划 %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	s.log.WithField("schedule", s.schedule).Info("保留期清理调度器已启动")
	return nil
}

// Stop 停止调度器并等待正在执行的清理结束
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.log.Info("保留期清理调度器已停止")
}
