package repository

import (
	"context"
	"strings"

	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"

	"gorm.io/gorm"
)

// LeadFilter 线索列表过滤条件
type LeadFilter struct {
	Status         string
	Source         string
	Keyword        string
	Tier           string
	IncludeDeleted bool
	OnlyDeleted    bool
	Page           pagination.PageParams // PageSize 为 0 时不分页
}

// Qualification 工作流回填的资格结论
type Qualification struct {
	Category string
	Reason   string
	Score    *int
}

// Intake 一次提交需要原子写入的全部数据
type Intake struct {
	Lead      *models.Lead
	Responses []models.QuizResponse
	Score     *models.LeadScore
}

// FindMany 租户内的线索列表，按创建时间倒序
func (r *Repository) FindMany(ctx context.Context, f LeadFilter) ([]models.Lead, int64, error) {
	query := r.scoped(ctx).Model(&models.Lead{})

	switch {
	case f.OnlyDeleted:
		query = query.Where("deleted_at IS NOT NULL")
	case !f.IncludeDeleted:
		query = query.Where("deleted_at IS NULL")
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		query = query.Where("source = ?", f.Source)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?)", like, like, like)
	}
	if f.Tier != "" {
		query = query.Where("id IN (?)",
			r.db.Model(&models.LeadScore{}).Select("lead_id").
				Where("tenant_id = ? AND tier = ?", r.scope.TenantID, f.Tier))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Score", "tenant_id = ?", r.scope.TenantID).Order("created_at DESC")
	if f.Page.PageSize > 0 {
		query = query.Offset(f.Page.Offset()).Limit(f.Page.PageSize)
	}

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// FindByID 查询未删除的线索；其他租户的线索同样返回 NotFound
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	err := r.scoped(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		Preload("Score", "tenant_id = ?", r.scope.TenantID).
		First(&lead).Error
	if err != nil {
		return nil, notFound(err, "lead")
	}
	return &lead, nil
}

// Create 写入租户与操作人，覆盖调用方传入的值
func (r *Repository) Create(ctx context.Context, lead *models.Lead) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	r.stampLead(lead)
	return r.db.WithContext(ctx).Create(lead).Error
}

// CreateIntake 在一个事务中写入线索、作答与评分
func (r *Repository) CreateIntake(ctx context.Context, in Intake) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	if in.Lead == nil {
		return apperrors.Validation("lead", "is required")
	}
	r.stampLead(in.Lead)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(in.Lead).Error; err != nil {
			return err
		}
		for i := range in.Responses {
			in.Responses[i].ID = 0
			in.Responses[i].TenantID = r.scope.TenantID
			in.Responses[i].LeadID = in.Lead.ID
		}
		if len(in.Responses) > 0 {
			if err := tx.Create(&in.Responses).Error; err != nil {
				return err
			}
		}
		if in.Score != nil {
			in.Score.ID = 0
			in.Score.TenantID = r.scope.TenantID
			in.Score.LeadID = in.Lead.ID
			if err := tx.Create(in.Score).Error; err != nil {
				return err
			}
			in.Lead.Score = in.Score
		}
		return nil
	})
}

func (r *Repository) stampLead(lead *models.Lead) {
	lead.TenantID = r.scope.TenantID
	lead.UserID = r.scope.UserID
	if lead.Status == "" {
		lead.Status = models.LeadStatusPending
	}
	lead.SoftDelete = models.SoftDelete{}
	lead.Score = nil
}

// Update 更新未删除的线索；影响行数为 0 视为不存在
func (r *Repository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	return r.updateLead(ctx, id, updates)
}

func (r *Repository) updateLead(ctx context.Context, id string, updates map[string]interface{}) error {
	clean := stripProtected(updates)
	if len(clean) == 0 {
		return nil
	}
	result := r.scoped(ctx).Model(&models.Lead{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(clean)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("lead")
	}
	return nil
}

// SetStatus 生命周期流转专用，需要审批权限
func (r *Repository) SetStatus(ctx context.Context, id, status string, extra map[string]interface{}) error {
	if err := r.scope.Require(models.PermLeadApprove); err != nil {
		return err
	}
	updates := stripProtected(extra)
	updates["status"] = status
	return r.updateLead(ctx, id, updates)
}

// BackfillQualification 回填工作流给出的资格结论和评分
func (r *Repository) BackfillQualification(ctx context.Context, leadID string, q Qualification) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := r.scopedTx(tx).Model(&models.Lead{}).
			Where("id = ? AND deleted_at IS NULL", leadID).
			Updates(map[string]interface{}{
				"qualification_category": q.Category,
				"qualification_reason":   q.Reason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("lead")
		}
		if q.Score == nil {
			return nil
		}
		return r.scopedTx(tx).Model(&models.LeadScore{}).
			Where("lead_id = ?", leadID).
			Update("qualification_score", *q.Score).Error
	})
}

// Delete 物理删除线索及其作答、评分和工作流
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先删子表，lead_scores 上有外键
		if _, err := deleteLeadChildren(tx, r.scope.TenantID, []string{id}); err != nil {
			return err
		}
		result := r.scopedTx(tx).Where("id = ?", id).Delete(&models.Lead{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("lead")
		}
		return nil
	})
}

// deleteLeadChildren 删除线索的全部子行（含已软删除的工作流），返回删除的工作流行数
func deleteLeadChildren(tx *gorm.DB, tenantID string, leadIDs []string) (int64, error) {
	if err := tx.Where("tenant_id = ? AND lead_id IN ?", tenantID, leadIDs).Delete(&models.QuizResponse{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("tenant_id = ? AND lead_id IN ?", tenantID, leadIDs).Delete(&models.LeadScore{}).Error; err != nil {
		return 0, err
	}
	result := tx.Where("tenant_id = ? AND lead_id IN ?", tenantID, leadIDs).Delete(&models.Workflow{})
	return result.RowsAffected, result.Error
}

// SoftDelete 标记删除，记录操作人与原因
func (r *Repository) SoftDelete(ctx context.Context, id, reason string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.Lead{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(r.softDeleteColumns(reason))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("lead")
	}
	return nil
}

// Restore 清除删除标记
func (r *Repository) Restore(ctx context.Context, id string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.Lead{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(restoreColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("lead")
	}
	return nil
}

// CountByStatus 按状态统计未删除的线索
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.scoped(ctx).Model(&models.Lead{}).
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[string]int64{
		models.LeadStatusPending:  0,
		models.LeadStatusApproved: 0,
		models.LeadStatusRejected: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Score 线索评分
func (r *Repository) Score(ctx context.Context, leadID string) (*models.LeadScore, error) {
	var score models.LeadScore
	if err := r.scoped(ctx).Where("lead_id = ?", leadID).First(&score).Error; err != nil {
		return nil, notFound(err, "score")
	}
	return &score, nil
}

// Responses 线索的作答，按题号排序
func (r *Repository) Responses(ctx context.Context, leadID string) ([]models.QuizResponse, error) {
	var responses []models.QuizResponse
	err := r.scoped(ctx).Where("lead_id = ?", leadID).Order("question_number ASC").Find(&responses).Error
	return responses, err
}
