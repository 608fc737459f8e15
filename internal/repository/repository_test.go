package repository

import (
	"context"
	"testing"
	"time"

	"leadflow/internal/auth"
	"leadflow/internal/database"
	"leadflow/internal/models"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/logger"
	"leadflow/pkg/pagination"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, logger.NewNop()))
	return db
}

func newRepo(t *testing.T, db *gorm.DB, tenantID string, role models.Role) *Repository {
	t.Helper()
	repo, err := New(db, Scope{TenantID: tenantID, UserID: "user_" + string(role), Role: role})
	require.NoError(t, err)
	return repo
}

func seedLead(t *testing.T, repo *Repository, name string) *models.Lead {
	t.Helper()
	lead := &models.Lead{Name: name, Email: name + "@example.com", Company: "Acme", Source: models.LeadSourceQuiz}
	require.NoError(t, repo.Create(context.Background(), lead))
	return lead
}

func TestNew_RequiresTenant(t *testing.T) {
	_, err := New(newTestDB(t), Scope{UserID: "u1", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, apperrors.ErrTenantContextMissing)
}

func TestScopeFromIdentity(t *testing.T) {
	scope, err := ScopeFromIdentity(auth.Identity{UserID: "u1", OrgID: "org_1", OrgRole: "org:manager"})
	require.NoError(t, err)
	assert.Equal(t, Scope{TenantID: "org_1", UserID: "u1", Role: models.RoleManager}, scope)

	_, err = ScopeFromIdentity(auth.Identity{UserID: "u1"})
	assert.ErrorIs(t, err, apperrors.ErrTenantContextMissing)

	scope, err = ScopeFromIdentity(auth.Identity{UserID: "u1", OrgID: "org_1", OrgRole: "owner"})
	require.NoError(t, err)
	assert.Empty(t, scope.Role)
	assert.ErrorIs(t, scope.Require(models.PermLeadRead), apperrors.ErrUnauthorized)
}

func TestCreate_InjectsTenantAndUser(t *testing.T) {
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleMember)

	lead := &models.Lead{TenantID: "org_b", UserID: "intruder", Name: "Ada"}
	require.NoError(t, repo.Create(context.Background(), lead))

	assert.Equal(t, "org_a", lead.TenantID)
	assert.Equal(t, "user_member", lead.UserID)
	assert.Equal(t, models.LeadStatusPending, lead.Status)
	assert.NotEmpty(t, lead.ID)

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, "org_a", stored.TenantID)
}

func TestCrossTenantAccessLooksLikeNotFound(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ownerA := newRepo(t, db, "org_a", models.RoleAdmin)
	adminB := newRepo(t, db, "org_b", models.RoleAdmin)

	lead := seedLead(t, ownerA, "ada")
	wf := &models.Workflow{LeadID: lead.ID, Definition: "lead-qualification"}
	require.NoError(t, ownerA.CreateWorkflow(ctx, wf))

	_, missingErr := adminB.FindByID(ctx, "does-not-exist")
	_, crossErr := adminB.FindByID(ctx, lead.ID)
	assert.ErrorIs(t, crossErr, apperrors.ErrNotFound)
	assert.Equal(t, missingErr.Error(), crossErr.Error())

	assert.ErrorIs(t, adminB.Update(ctx, lead.ID, map[string]interface{}{"name": "pwned"}), apperrors.ErrNotFound)
	assert.ErrorIs(t, adminB.SoftDelete(ctx, lead.ID, "x"), apperrors.ErrNotFound)
	assert.ErrorIs(t, adminB.Delete(ctx, lead.ID), apperrors.ErrNotFound)
	assert.ErrorIs(t, adminB.SetStatus(ctx, lead.ID, models.LeadStatusApproved, nil), apperrors.ErrNotFound)
	assert.ErrorIs(t, adminB.CreateWorkflow(ctx, &models.Workflow{LeadID: lead.ID}), apperrors.ErrNotFound)

	_, err := adminB.FindWorkflowByID(ctx, wf.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = adminB.LatestWorkflowForLead(ctx, lead.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, adminB.UpdateWorkflow(ctx, wf.ID, map[string]interface{}{"status": "failed"}), apperrors.ErrNotFound)

	leads, total, err := adminB.FindMany(ctx, LeadFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, leads)

	counts, err := adminB.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[models.LeadStatusPending])

	got, err := ownerA.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Name)
	assert.Equal(t, models.LeadStatusPending, got.Status)
}

func TestUpdate_CannotRewriteTenant(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleMember)
	lead := seedLead(t, repo, "ada")

	require.NoError(t, repo.Update(ctx, lead.ID, map[string]interface{}{"tenant_id": "org_b", "company": "Engines"}))

	got, err := repo.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "org_a", got.TenantID)
	assert.Equal(t, "Engines", got.Company)
}

func TestMemberCannotDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	member := newRepo(t, db, "org_a", models.RoleMember)
	lead := seedLead(t, member, "ada")

	assert.ErrorIs(t, member.Delete(ctx, lead.ID), apperrors.ErrUnauthorized)
	assert.ErrorIs(t, member.SoftDelete(ctx, lead.ID, "spam"), apperrors.ErrUnauthorized)

	got, err := member.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())
	assert.Equal(t, models.LeadStatusPending, got.Status)
}

func TestNoRoleCannotWrite(t *testing.T) {
	repo, err := New(newTestDB(t), Scope{TenantID: "org_a", UserID: "u1"})
	require.NoError(t, err)
	err = repo.Create(context.Background(), &models.Lead{Name: "x"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleManager)
	lead := seedLead(t, repo, "ada")

	require.NoError(t, repo.SoftDelete(ctx, lead.ID, "duplicate"))

	_, err := repo.FindByID(ctx, lead.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	deleted, total, err := repo.FindMany(ctx, LeadFilter{OnlyDeleted: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "user_manager", *deleted[0].DeletedBy)
	assert.Equal(t, "duplicate", *deleted[0].DeletionReason)

	assert.ErrorIs(t, repo.SoftDelete(ctx, lead.ID, "again"), apperrors.ErrNotFound)

	require.NoError(t, repo.Restore(ctx, lead.ID))
	got, err := repo.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
	assert.Nil(t, got.DeletedBy)

	assert.ErrorIs(t, repo.Restore(ctx, lead.ID), apperrors.ErrNotFound)
}

func TestCreateIntake(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := New(db, PublicIntakeScope("org_a"))
	require.NoError(t, err)

	lead := &models.Lead{Name: "Ada", Email: "ada@example.com", Source: models.LeadSourceQuiz}
	in := Intake{
		Lead: lead,
		Responses: []models.QuizResponse{
			{QuestionNumber: 1, Answer: datatypes.JSON(`{"name":"Ada"}`), TenantID: "org_b"},
			{QuestionNumber: 4, Answer: datatypes.JSON(`"b"`), PointsEarned: 40},
		},
		Score: &models.LeadScore{ReadinessScore: 6, TotalPoints: 40, MaxPossiblePoints: 699, Tier: "cold",
			Breakdown: datatypes.JSONMap{"currentState": 40}},
	}
	require.NoError(t, repo.CreateIntake(ctx, in))
	assert.Equal(t, PublicIntakeUserID, lead.UserID)

	score, err := repo.Score(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, score.TotalPoints)
	assert.Equal(t, "org_a", score.TenantID)

	responses, err := repo.Responses(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, r := range responses {
		assert.Equal(t, "org_a", r.TenantID)
		assert.Equal(t, lead.ID, r.LeadID)
	}

	got, err := repo.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, "cold", got.Score.Tier)
}

func TestFindMany_Filters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleAdmin)

	ada := seedLead(t, repo, "ada")
	seedLead(t, repo, "grace")
	seedLead(t, repo, "linus")
	require.NoError(t, repo.SetStatus(ctx, ada.ID, models.LeadStatusApproved, nil))

	leads, total, err := repo.FindMany(ctx, LeadFilter{Status: models.LeadStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, leads, 2)

	leads, _, err = repo.FindMany(ctx, LeadFilter{Keyword: "GRA"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "grace", leads[0].Name)

	leads, total, err = repo.FindMany(ctx, LeadFilter{Page: pagination.PageParams{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, leads, 1)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[models.LeadStatusPending])
	assert.EqualValues(t, 1, counts[models.LeadStatusApproved])
	assert.EqualValues(t, 0, counts[models.LeadStatusRejected])
}

func TestLatestWorkflowForLead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleAdmin)
	lead := seedLead(t, repo, "ada")

	_, err := repo.LatestWorkflowForLead(ctx, lead.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	older := &models.Workflow{LeadID: lead.ID, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Workflow{LeadID: lead.ID}
	require.NoError(t, repo.CreateWorkflow(ctx, older))
	require.NoError(t, repo.CreateWorkflow(ctx, newer))

	latest, err := repo.LatestWorkflowForLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, "org_a", latest.TenantID)
	assert.Equal(t, models.WorkflowStatusRunning, latest.Status)
}

func TestBackfillQualification(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleAdmin)
	lead := &models.Lead{Name: "ada"}
	require.NoError(t, repo.CreateIntake(ctx, Intake{Lead: lead, Score: &models.LeadScore{Tier: "hot"}}))

	score := 72
	require.NoError(t, repo.BackfillQualification(ctx, lead.ID, Qualification{Category: "enterprise", Reason: "fits", Score: &score}))

	got, err := repo.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "enterprise", *got.QualificationCategory)
	require.NotNil(t, got.Score.QualificationScore)
	assert.Equal(t, 72, *got.Score.QualificationScore)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleManager)
	other := newRepo(t, db, "org_b", models.RoleManager)

	doc := &models.KnowledgeDocument{Title: "Pricing FAQ", Content: "..."}
	require.NoError(t, repo.CreateDocument(ctx, doc))

	docs, total, err := repo.FindDocuments(ctx, "pricing", pagination.PageParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, doc.ID, docs[0].ID)

	_, err = other.FindDocumentByID(ctx, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, other.SoftDeleteDocument(ctx, doc.ID, ""), apperrors.ErrNotFound)

	require.NoError(t, repo.SoftDeleteDocument(ctx, doc.ID, ""))
	_, err = repo.FindDocumentByID(ctx, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, repo.RestoreDocument(ctx, doc.ID))
}

func TestHardDeleteRemovesChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newRepo(t, db, "org_a", models.RoleManager)
	lead := &models.Lead{Name: "ada"}
	require.NoError(t, repo.CreateIntake(ctx, Intake{
		Lead:      lead,
		Responses: []models.QuizResponse{{QuestionNumber: 1}},
		Score:     &models.LeadScore{Tier: "cold"},
	}))
	require.NoError(t, repo.CreateWorkflow(ctx, &models.Workflow{LeadID: lead.ID}))
	stale := &models.Workflow{LeadID: lead.ID}
	require.NoError(t, repo.CreateWorkflow(ctx, stale))
	require.NoError(t, repo.SoftDeleteWorkflow(ctx, stale.ID, ""))

	require.NoError(t, repo.Delete(ctx, lead.ID))

	var n int64
	db.Model(&models.QuizResponse{}).Where("lead_id = ?", lead.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.LeadScore{}).Where("lead_id = ?", lead.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.Workflow{}).Where("lead_id = ?", lead.ID).Count(&n)
	assert.Zero(t, n)
	assert.ErrorIs(t, repo.Delete(ctx, lead.ID), apperrors.ErrNotFound)
}
