package auth

import (
	"context"
	"strings"

	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
)

// Identity 每个请求由身份提供方给出的调用方信息
type Identity struct {
	UserID  string
	OrgID   string
	OrgRole string // 原始声明，如 "org:admin"
}

// ParseRole 解析组织角色声明，兼容 "admin" 与 "org:admin" 两种写法
func ParseRole(claim string) (models.Role, bool) {
	claim = strings.ToLower(strings.TrimSpace(claim))
	claim = strings.TrimPrefix(claim, "org:")
	for _, r := range models.AllRoles() {
		if string(r) == claim {
			return r, true
		}
	}
	return "", false
}

// ResolvedRole 没有角色声明或无法识别时返回 false
func (id Identity) ResolvedRole() (models.Role, bool) {
	return ParseRole(id.OrgRole)
}

// RequireOrganization 未选择组织时返回 TenantContextMissing（区别于未登录）
func (id Identity) RequireOrganization() error {
	if id.UserID == "" {
		return apperrors.ErrUnauthenticated
	}
	if id.OrgID == "" {
		return apperrors.ErrTenantContextMissing
	}
	return nil
}

type identityKey struct{}

// WithIdentity 将身份放入 context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext 取出身份
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
