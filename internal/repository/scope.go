// Package repository wraps every tenant-owned table behind a Repository bound
// to one tenant. There is no method that accepts a tenant id from the caller;
// the predicate always comes from the Scope the repository was built with.
package repository

import (
	"context"
	"errors"
	"time"

	"leadflow/internal/auth"
	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"

	"gorm.io/gorm"
)

// Scope 调用方解析后的租户上下文
type Scope struct {
	TenantID string
	UserID   string
	Role     models.Role // 为空表示没有任何权限
}

// PublicIntakeUserID 匿名提交线索时记录的操作人
const PublicIntakeUserID = "public-intake"

// SystemUserID 定时任务等内部操作记录的操作人
const SystemUserID = "system"

// ScopeFromIdentity 由身份信息构造 Scope；缺少组织时返回 TenantContextMissing
func ScopeFromIdentity(id auth.Identity) (Scope, error) {
	if err := id.RequireOrganization(); err != nil {
		return Scope{}, err
	}
	role, _ := id.ResolvedRole()
	return Scope{TenantID: id.OrgID, UserID: id.UserID, Role: role}, nil
}

// PublicIntakeScope 公开测评提交使用的 Scope
func PublicIntakeScope(tenantID string) Scope {
	return Scope{TenantID: tenantID, UserID: PublicIntakeUserID, Role: models.RoleMember}
}

// SystemScope 内部任务（保留期清理、工作流回调）使用的 Scope
func SystemScope(tenantID string) Scope {
	return Scope{TenantID: tenantID, UserID: SystemUserID, Role: models.RoleAdmin}
}

// Require 校验 Scope 的角色是否拥有权限
func (s Scope) Require(perm models.Permission) error {
	if s.Role == "" || !auth.HasPermission(s.Role, perm) {
		return apperrors.Unauthorized(string(perm))
	}
	return nil
}

// Repository 绑定到单一租户的数据访问入口
type Repository struct {
	db    *gorm.DB
	scope Scope
	now   func() time.Time
}

// New 创建租户作用域的仓储
func New(db *gorm.DB, scope Scope) (*Repository, error) {
	if scope.TenantID == "" {
		return nil, apperrors.ErrTenantContextMissing
	}
	return &Repository{db: db, scope: scope, now: time.Now}, nil
}

// Scope 当前作用域
func (r *Repository) Scope() Scope {
	return r.scope
}

// WithScope 同一连接换一个作用域
func (r *Repository) WithScope(scope Scope) (*Repository, error) {
	return New(r.db, scope)
}

// scoped 所有查询的起点，强制带上租户条件
func (r *Repository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.scope.TenantID)
}

func (r *Repository) scopedTx(tx *gorm.DB) *gorm.DB {
	return tx.Where("tenant_id = ?", r.scope.TenantID)
}

// notFound 把 gorm 的不存在错误转换成业务错误
func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity)
	}
	return err
}

// stripProtected 更新时丢弃不允许调用方改写的列
func stripProtected(updates map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		switch k {
		case "id", "tenant_id", "user_id", "created_at", "deleted_at", "deleted_by", "deletion_reason":
			continue
		}
		clean[k] = v
	}
	return clean
}

func (r *Repository) softDeleteColumns(reason string) map[string]interface{} {
	now := r.now()
	updates := map[string]interface{}{
		"deleted_at": &now,
		"deleted_by": r.scope.UserID,
	}
	if reason != "" {
		updates["deletion_reason"] = reason
	} else {
		updates["deletion_reason"] = nil
	}
	return updates
}

func restoreColumns() map[string]interface{} {
	return map[string]interface{}{
		"deleted_at":      nil,
		"deleted_by":      nil,
		"deletion_reason": nil,
	}
}
