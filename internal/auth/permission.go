package auth

import (
	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
)

type permissionSet map[models.Permission]struct{}

func setOf(perms ...models.Permission) permissionSet {
	s := make(permissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

var memberPermissions = []models.Permission{
	models.PermLeadRead,
	models.PermLeadWrite,
	models.PermLeadComment,
	models.PermWorkflowRead,
	models.PermAnalyticsView,
}

var managerPermissions = append(append([]models.Permission{}, memberPermissions...),
	models.PermLeadApprove,
	models.PermLeadDelete,
	models.PermLeadExport,
	models.PermWorkflowCancel,
	models.PermTeamInvite,
)

// rolePermissions 静态角色权限矩阵；未列出的权限一律拒绝
var rolePermissions = map[models.Role]permissionSet{
	models.RoleMember:  setOf(memberPermissions...),
	models.RoleManager: setOf(managerPermissions...),
	models.RoleAdmin:   setOf(models.AllPermissions()...),
}

// HasPermission 角色是否拥有权限；未知角色没有任何权限
func HasPermission(role models.Role, perm models.Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// PermissionsFor 返回角色的权限列表（按 AllPermissions 顺序）
func PermissionsFor(role models.Role) []models.Permission {
	var out []models.Permission
	for _, p := range models.AllPermissions() {
		if HasPermission(role, p) {
			out = append(out, p)
		}
	}
	return out
}

// RequirePermission 调用方缺少权限时返回 Unauthorized
func RequirePermission(id Identity, perm models.Permission) error {
	role, ok := id.ResolvedRole()
	if !ok || !HasPermission(role, perm) {
		return apperrors.Unauthorized(string(perm))
	}
	return nil
}
