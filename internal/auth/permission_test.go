package auth

import (
	"context"
	"testing"

	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission_Matrix(t *testing.T) {
	want := map[models.Role][]models.Permission{
		models.RoleMember: {
			models.PermLeadRead, models.PermLeadWrite, models.PermLeadComment,
			models.PermWorkflowRead, models.PermAnalyticsView,
		},
		models.RoleManager: {
			models.PermLeadRead, models.PermLeadWrite, models.PermLeadApprove, models.PermLeadDelete,
			models.PermLeadExport, models.PermLeadComment, models.PermWorkflowRead, models.PermWorkflowCancel,
			models.PermTeamInvite, models.PermAnalyticsView,
		},
		models.RoleAdmin: models.AllPermissions(),
	}

	for _, role := range models.AllRoles() {
		granted := map[models.Permission]bool{}
		for _, p := range want[role] {
			granted[p] = true
		}
		for _, perm := range models.AllPermissions() {
			assert.Equal(t, granted[perm], HasPermission(role, perm), "%s × %s", role, perm)
		}
	}
}

func TestHasPermission_AdminIsSuperset(t *testing.T) {
	for _, role := range []models.Role{models.RoleManager, models.RoleMember} {
		for _, perm := range PermissionsFor(role) {
			assert.True(t, HasPermission(models.RoleAdmin, perm), "admin lacks %s granted to %s", perm, role)
		}
	}
	for _, perm := range PermissionsFor(models.RoleMember) {
		assert.True(t, HasPermission(models.RoleManager, perm), "manager lacks %s granted to member", perm)
	}
}

func TestHasPermission_EveryRoleNonEmpty(t *testing.T) {
	for _, role := range models.AllRoles() {
		assert.NotEmpty(t, PermissionsFor(role), string(role))
	}
}

func TestHasPermission_UnknownRole(t *testing.T) {
	for _, perm := range models.AllPermissions() {
		assert.False(t, HasPermission("", perm))
		assert.False(t, HasPermission("owner", perm))
	}
}

func TestRequirePermission(t *testing.T) {
	member := Identity{UserID: "u1", OrgID: "org_1", OrgRole: "org:member"}
	err := RequirePermission(member, models.PermLeadDelete)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NoError(t, RequirePermission(member, models.PermLeadRead))

	noRole := Identity{UserID: "u1", OrgID: "org_1"}
	assert.ErrorIs(t, RequirePermission(noRole, models.PermLeadRead), apperrors.ErrUnauthorized)
}

func TestParseRole(t *testing.T) {
	cases := map[string]models.Role{
		"admin":       models.RoleAdmin,
		"org:admin":   models.RoleAdmin,
		"ORG:Manager": models.RoleManager,
		" member ":    models.RoleMember,
	}
	for claim, want := range cases {
		got, ok := ParseRole(claim)
		assert.True(t, ok, claim)
		assert.Equal(t, want, got, claim)
	}

	for _, claim := range []string{"", "org:", "owner", "basic_member"} {
		_, ok := ParseRole(claim)
		assert.False(t, ok, claim)
	}
}

func TestIdentity_RequireOrganization(t *testing.T) {
	assert.ErrorIs(t, Identity{}.RequireOrganization(), apperrors.ErrUnauthenticated)
	assert.ErrorIs(t, Identity{UserID: "u1"}.RequireOrganization(), apperrors.ErrTenantContextMissing)
	assert.NoError(t, Identity{UserID: "u1", OrgID: "o1"}.RequireOrganization())
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
