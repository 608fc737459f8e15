package models

// Role 组织内角色，由身份声明推导，不入库
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Permission 权限码，格式为 模块:操作
type Permission string

const (
	PermLeadRead       Permission = "lead:read"
	PermLeadWrite      Permission = "lead:write"
	PermLeadApprove    Permission = "lead:approve"
	PermLeadDelete     Permission = "lead:delete"
	PermLeadExport     Permission = "lead:export"
	PermLeadComment    Permission = "lead:comment"
	PermWorkflowRead   Permission = "workflow:read"
	PermWorkflowCancel Permission = "workflow:cancel"
	PermTeamInvite     Permission = "team:invite"
	PermTeamManage     Permission = "team:manage"
	PermOrgManage      Permission = "org:manage"
	PermBillingManage  Permission = "billing:manage"
	PermAnalyticsView  Permission = "analytics:view"
)

// AllRoles 全部角色
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleMember}
}

// AllPermissions 全部权限
func AllPermissions() []Permission {
	return []Permission{
		PermLeadRead, PermLeadWrite, PermLeadApprove, PermLeadDelete, PermLeadExport, PermLeadComment,
		PermWorkflowRead, PermWorkflowCancel,
		PermTeamInvite, PermTeamManage,
		PermOrgManage, PermBillingManage, PermAnalyticsView,
	}
}
