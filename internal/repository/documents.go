package repository

import (
	"context"
	"strings"

	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
)

// CreateDocument 新增知识库文档
func (r *Repository) CreateDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	if err := r.scope.Require(models.PermLeadWrite); err != nil {
		return err
	}
	doc.TenantID = r.scope.TenantID
	doc.UserID = r.scope.UserID
	doc.SoftDelete = models.SoftDelete{}
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindDocuments 知识库文档列表
func (r *Repository) FindDocuments(ctx context.Context, keyword string, page pagination.PageParams) ([]models.KnowledgeDocument, int64, error) {
	query := r.scoped(ctx).Model(&models.KnowledgeDocument{}).Where("deleted_at IS NULL")
	if keyword != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(keyword)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if page.PageSize > 0 {
		query = query.Offset(page.Offset()).Limit(page.PageSize)
	}

	var docs []models.KnowledgeDocument
	if err := query.Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// FindDocumentByID 查询未删除的文档
func (r *Repository) FindDocumentByID(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	if err := r.scoped(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&doc).Error; err != nil {
		return nil, notFound(err, "document")
	}
	return &doc, nil
}

// SoftDeleteDocument 标记删除文档
func (r *Repository) SoftDeleteDocument(ctx context.Context, id, reason string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.KnowledgeDocument{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(r.softDeleteColumns(reason))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("document")
	}
	return nil
}

// RestoreDocument 恢复已删除的文档
func (r *Repository) RestoreDocument(ctx context.Context, id string) error {
	if err := r.scope.Require(models.PermLeadDelete); err != nil {
		return err
	}
	result := r.scoped(ctx).Model(&models.KnowledgeDocument{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(restoreColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("document")
	}
	return nil
}
