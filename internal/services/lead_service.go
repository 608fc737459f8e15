package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
	"leadflow/pkg/scoring"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LeadDetail 线索详情页所需的全部数据
type LeadDetail struct {
	Lead      *models.Lead          `json:"lead"`
	Responses []models.QuizResponse `json:"responses"`
	Workflow  *models.Workflow      `json:"workflow,omitempty"`
	Action    scoring.Action        `json:"action,omitempty"`
}

// LeadUpdate 可编辑的线索字段，nil 表示不修改
type LeadUpdate struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email   *string `json:"email" validate:"omitempty,email,max=200"`
	Company *string `json:"company" validate:"omitempty,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Message *string `json:"message" validate:"omitempty,max=5000"`
}

// LeadStats 线索统计与本月配额用量
type LeadStats struct {
	ByStatus map[string]int64 `json:"by_status"`
	Total    int64            `json:"total"`
	Usage    *Usage           `json:"usage,omitempty"`
}

// LeadService 线索管理
type LeadService struct {
	db       *gorm.DB
	quota    QuotaGuard
	log      *logrus.Logger
	validate *validator.Validate
}

// NewLeadService 创建线索管理服务；quota 为 nil 时统计不含用量
func NewLeadService(db *gorm.DB, quota QuotaGuard, log *logrus.Logger) *LeadService {
	return &LeadService{db: db, quota: quota, log: log, validate: NewValidator()}
}

func (s *LeadService) repo(scope repository.Scope) (*repository.Repository, error) {
	return repository.New(s.db, scope)
}

// List 分页查询线索
func (s *LeadService) List(ctx context.Context, scope repository.Scope, filter repository.LeadFilter) ([]models.Lead, int64, error) {
	repo, err := s.repo(scope)
	if err != nil {
		return nil, 0, err
	}
	if filter.IncludeDeleted || filter.OnlyDeleted {
		// 回收站只对有删除权限的角色可见
		if err := scope.Require(models.PermLeadDelete); err != nil {
			return nil, 0, err
		}
	}
	return repo.FindMany(ctx, filter)
}

// Get 线索详情，包含作答与最新工作流
func (s *LeadService) Get(ctx context.Context, scope repository.Scope, id string) (*LeadDetail, error) {
	repo, err := s.repo(scope)
	if err != nil {
		return nil, err
	}
	lead, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	responses, err := repo.Responses(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &LeadDetail{Lead: lead, Responses: responses}
	if lead.Score != nil {
		detail.Action = scoring.ActionForString(lead.Score.Tier)
	}
	wf, err := repo.LatestWorkflowForLead(ctx, id)
	switch {
	case err == nil:
		detail.Workflow = wf
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

// Score 线索评分；没有评分时返回 NotFound
func (s *LeadService) Score(ctx context.Context, scope repository.Scope, id string) (*models.LeadScore, error) {
	repo, err := s.repo(scope)
	if err != nil {
		return nil, err
	}
	if _, err := repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return repo.Score(ctx, id)
}

// Update 修改联系信息
func (s *LeadService) Update(ctx context.Context, scope repository.Scope, id string, in LeadUpdate) (*models.Lead, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, ValidationError(err)
	}
	repo, err := s.repo(scope)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	set("name", in.Name)
	set("email", in.Email)
	set("company", in.Company)
	set("phone", in.Phone)
	set("title", in.Title)
	set("message", in.Message)
	if len(updates) == 0 {
		return nil, apperrors.Validation("body", "no fields to update")
	}

	if err := repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id)
}

// SoftDelete 移入回收站
func (s *LeadService) SoftDelete(ctx context.Context, scope repository.Scope, id, reason string) error {
	repo, err := s.repo(scope)
	if err != nil {
		return err
	}
	if err := repo.SoftDelete(ctx, id, reason); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"tenant_id": scope.TenantID,
		"lead_id":   id,
		"actor":     scope.UserID,
	}).Info("Lead moved to trash")
	return nil
}

// Restore 从回收站恢复
func (s *LeadService) Restore(ctx context.Context, scope repository.Scope, id string) error {
	repo, err := s.repo(scope)
	if err != nil {
		return err
	}
	return repo.Restore(ctx, id)
}

// Delete 物理删除线索及其作答、评分与工作流
func (s *LeadService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	repo, err := s.repo(scope)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"tenant_id": scope.TenantID,
		"lead_id":   id,
		"actor":     scope.UserID,
	}).Warn("Lead permanently deleted")
	return nil
}

// Stats 按状态统计，附带本月配额用量
func (s *LeadService) Stats(ctx context.Context, scope repository.Scope, tenant *models.Tenant) (*LeadStats, error) {
	if err := scope.Require(models.PermAnalyticsView); err != nil {
		return nil, err
	}
	repo, err := s.repo(scope)
	if err != nil {
		return nil, err
	}
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &LeadStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	if s.quota != nil && tenant != nil {
		usage, err := s.quota.Usage(ctx, tenant)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", scope.TenantID).Warn("Failed to read usage")
		} else {
			stats.Usage = &usage
		}
	}
	return stats, nil
}

// exportColumns CSV 表头
var exportColumns = []string{
	"id", "created_at", "status", "source", "name", "email", "company", "phone", "title",
	"tier", "readiness_score", "qualification_category",
}

// exportPageSize 导出时每批读取的行数
const exportPageSize = 500

// Export 以 CSV 写出符合条件的线索，分批读取
func (s *LeadService) Export(ctx context.Context, scope repository.Scope, filter repository.LeadFilter, w io.Writer) (int, error) {
	if err := scope.Require(models.PermLeadExport); err != nil {
		return 0, err
	}
	repo, err := s.repo(scope)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return 0, err
	}

	written := 0
	filter.IncludeDeleted, filter.OnlyDeleted = false, false
	for page := 1; ; page++ {
		filter.Page = pagination.PageParams{Page: page, PageSize: exportPageSize}
		leads, total, err := repo.FindMany(ctx, filter)
		if err != nil {
			return written, fmt.Errorf("export page %d: %w", page, err)
		}
		for i := range leads {
			if err := cw.Write(exportRow(&leads[i])); err != nil {
				return written, err
			}
			written++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return written, err
		}
		if len(leads) < exportPageSize || int64(page*exportPageSize) >= total {
			break
		}
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": scope.TenantID,
		"actor":     scope.UserID,
		"rows":      written,
	}).Info("Leads exported")
	return written, nil
}

func exportRow(l *models.Lead) []string {
	tier, readiness := "", ""
	if l.Score != nil {
		tier = l.Score.Tier
		readiness = strconv.Itoa(l.Score.ReadinessScore)
	}
	category := ""
	if l.QualificationCategory != nil {
		category = *l.QualificationCategory
	}
	return []string{
		l.ID,
		l.CreatedAt.UTC().Format(time.RFC3339),
		l.Status,
		l.Source,
		csvSafe(l.Name),
		csvSafe(l.Email),
		csvSafe(l.Company),
		csvSafe(l.Phone),
		csvSafe(l.Title),
		tier,
		readiness,
		csvSafe(category),
	}
}

// csvSafe 防止表格软件把单元格当作公式执行
func csvSafe(v string) string {
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		return "'" + v
	}
	return v
}
