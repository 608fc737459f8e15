package services

import (
	"context"
	"net"
	"strings"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/pkg/config"
	apperrors "leadflow/pkg/errors"

	"gorm.io/gorm"
)

// TenantResolver 根据请求的 Host 找到租户
type TenantResolver struct {
	store      *repository.TenantStore
	baseDomain string
}

// NewTenantResolver 创建解析器
func NewTenantResolver(db *gorm.DB, cfg config.TenantConfig) *TenantResolver {
	return &TenantResolver{
		store:      repository.NewTenantStore(db),
		baseDomain: strings.ToLower(strings.Trim(cfg.BaseDomain, ".")),
	}
}

// SubdomainFromHost 从 host 中取出根域名之前的一级子域名；
// acme.leadflow.io 在根域名 leadflow.io 下得到 acme
func SubdomainFromHost(host, baseDomain string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	baseDomain = strings.ToLower(strings.Trim(baseDomain, "."))
	if baseDomain == "" || host == baseDomain {
		return "", false
	}

	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") || sub == "www" {
		return "", false
	}
	return sub, true
}

// Resolve 解析 host；没有子域名或租户不存在时返回 NotFound
func (r *TenantResolver) Resolve(ctx context.Context, host string) (*models.Tenant, error) {
	sub, ok := SubdomainFromHost(host, r.baseDomain)
	if !ok {
		return nil, apperrors.NotFound("tenant")
	}
	return r.store.FindBySubdomain(ctx, sub)
}

// BySubdomain 直接按子域名查询
func (r *TenantResolver) BySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	return r.store.FindBySubdomain(ctx, subdomain)
}

// ByOrgID 按组织ID查询，已登录请求使用
func (r *TenantResolver) ByOrgID(ctx context.Context, orgID string) (*models.Tenant, error) {
	return r.store.FindByOrgID(ctx, orgID)
}
