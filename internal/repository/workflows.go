package repository

import (
	"context"

	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
)

// WorkflowFilter 工作流列表过滤条件
type WorkflowFilter struct {
	LeadID         string
	Status         string
	IncludeDeleted bool
	Page           pagination.PageParams
}

// CreateWorkflow 为本租户的线索创建工作流记录
func (r *Repository) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	// 线索必须属于本租户
	var count int64
	if err := r.scoped(ctx).Model(&models.Lead{}).Where("id = ?", wf.LeadID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.NotFound("lead")
	}

	wf.TenantID = r.scope.TenantID
	wf.SoftDelete = models.SoftDelete{}
	if wf.Status == "" {
		wf.Status = models.WorkflowStatusRunning
	}
	return r.db.WithContext(ctx).Create(wf).Error
}

// FindWorkflows 工作流列表，最新的在前
func (r *Repository) FindWorkflows(ctx context.Context, f WorkflowFilter) ([]models.Workflow, int64, error) {
	query := r.scoped(ctx).Model(&models.Workflow{})
	if !f.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if f.LeadID != "" {
		query = query.Where("lead_id = ?", f.LeadID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if f.Page.PageSize > 0 {
		query = query.Offset(f.Page.Offset()).Limit(f.Page.PageSize)
	}

	var workflows []models.Workflow
	if err := query.Find(&workflows).Error; err != nil {
		return nil, 0, err
	}
	return workflows, total, nil
}

// FindWorkflowByID 查询未删除的工作流
func (r *Repository) FindWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := r.scoped(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&wf).Error; err != nil {
		return nil, notFound(err, "workflow")
	}
	return &wf, nil
}

// LatestWorkflowForLead 线索最近创建的工作流；没有时返回 NotFound
func (r *Repository) LatestWorkflowForLead(ctx context.Context, leadID string) (*models.Workflow, error) {
	var wf models.Workflow
	err := r.scoped(ctx).
		Where("lead_id = ? AND deleted_at IS NULL", leadID).
		Order("created_at DESC").
		First(&wf).Error
	if err != nil {
		return nil, notFound(err, "workflow")
	}
	return &wf, nil
}

// UpdateWorkflow 更新未删除的工作流
func (r *Repository) UpdateWorkflow(ctx context.Context, id string, updates map[string]interface{}) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	clean := stripProtected(updates)
	if len(clean) == 0 {
		return nil
	}
	result := r.scoped(ctx).Model(&models.Workflow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(clean)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("workflow")
	}
	return nil
}

// SoftDeleteWorkflow 标记删除工作流
func (r *Repository) SoftDeleteWorkflow(ctx context.Context, id, reason string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.Workflow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(r.softDeleteColumns(reason))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("workflow")
	}
	return nil
}

// RestoreWorkflow 恢复已删除的工作流
func (r *Repository) RestoreWorkflow(ctx context.Context, id string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.Workflow{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(restoreColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("workflow")
	}
	return nil
}
