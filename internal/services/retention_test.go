package services

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/pkg/config"
	"leadflow/pkg/logger"
	"leadflow/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionSweep_AllTenants(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := repository.NewTenantStore(db)
	require.NoError(t, store.Save(ctx, &models.Tenant{Name: "A", Subdomain: "a", OrgID: "org_a", Status: models.TenantStatusActive}))
	require.NoError(t, store.Save(ctx, &models.Tenant{Name: "B", Subdomain: "b", OrgID: "org_b", Status: models.TenantStatusInactive}))

	var expired []string
	for _, org := range []string{"org_a", "org_b"} {
		repo, err := repository.New(db, scopeFor(org, models.RoleAdmin))
		require.NoError(t, err)
		for _, days := range []int{120, 5} {
			lead := &models.Lead{Name: org, Email: org + "@example.com"}
			require.NoError(t, repo.Create(ctx, lead))
			require.NoError(t, repo.SoftDelete(ctx, lead.ID, "spam"))
			at := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).Update("deleted_at", at).Error)
			if days > 90 {
				expired = append(expired, lead.ID)
			}
		}
	}

	m := metrics.New(config.MetricsConfig{Enabled: true, Namespace: "retention_test"})
	svc := NewRetentionService(db, config.RetentionConfig{Days: 90}, logger.NewNop(), m)

	report, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tenants)
	assert.EqualValues(t, 2, report.Counts.Leads)
	assert.Empty(t, report.Failed)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `retention_test_retention_purged_rows_total{entity="leads"} 2`)

	var remaining int64
	require.NoError(t, db.Model(&models.Lead{}).Where("id IN ?", expired).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Lead{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining, "deletions inside the window survive")

	again, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Counts.Total())
}

func TestRetentionScheduler_RejectsBadSchedule(t *testing.T) {
	svc := NewRetentionService(newTestDB(t), config.RetentionConfig{Days: 90}, logger.NewNop(), nil)

	bad := NewRetentionScheduler(svc, "every night", logger.NewNop())
	assert.Error(t, bad.Start())

	good := NewRetentionScheduler(svc, "0 3 * * *", logger.NewNop())
	require.NoError(t, good.Start())
	assert.Error(t, good.Start(), "already running")
	good.Stop()
	good.Stop()
}
