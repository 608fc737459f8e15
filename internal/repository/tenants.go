package repository

import (
	"context"
	"strings"

	"leadflow/internal/models"

	"gorm.io/gorm"
)

// TenantStore 租户表不属于任何租户，单独访问
type TenantStore struct {
	db *gorm.DB
}

// NewTenantStore 创建租户存储
func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{db: db}
}

// FindBySubdomain 按子域名查询启用的租户
func (s *TenantStore) FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Where("subdomain = ? AND status = ?", strings.ToLower(subdomain), models.TenantStatusActive).
		First(&tenant).Error
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return &tenant, nil
}

// FindByOrgID 按组织ID查询租户
func (s *TenantStore) FindByOrgID(ctx context.Context, orgID string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&tenant).Error; err != nil {
		return nil, notFound(err, "tenant")
	}
	return &tenant, nil
}

// ListActive 全部启用的租户
func (s *TenantStore) ListActive(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.WithContext(ctx).Where("status = ?", models.TenantStatusActive).Order("id ASC").Find(&tenants).Error
	return tenants, err
}

// List 全部租户，保留期清理需要覆盖已停用的租户
func (s *TenantStore) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.WithContext(ctx).Order("id ASC").Find(&tenants).Error
	return tenants, err
}

// Save 创建或更新租户（种子数据与运维命令使用）
func (s *TenantStore) Save(ctx context.Context, tenant *models.Tenant) error {
	tenant.Subdomain = strings.ToLower(tenant.Subdomain)
	return s.db.WithContext(ctx).Save(tenant).Error
}
