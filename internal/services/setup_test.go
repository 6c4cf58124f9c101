package services

import (
	"testing"

	"gorm.io/gorm"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/pkg/models"
)

type fixture struct {
	db     *gorm.DB
	store  *repository.GormStore
	orch   *Orchestrator
	tenant *models.Tenant
	admin  models.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, db := repotest.Store(t)
	tenant := repotest.SeedTenant(t, db, "acme.test")
	return &fixture{
		db:     db,
		store:  store,
		orch:   NewOrchestrator(store, logging.NewNop(), nil),
		tenant: tenant,
		admin:  models.Session{UserID: "admin-1", Role: models.RoleTenantAdmin, TenantID: tenant.ID},
	}
}

func (f *fixture) session(role models.Role) models.Session {
	return models.Session{UserID: "user-" + string(role), Role: role, TenantID: f.tenant.ID}
}

func (f *fixture) reloadConfig(t *testing.T, id string) *models.Configuration {
	t.Helper()
	var cfg models.Configuration
	if err := f.db.First(&cfg, "id = ?", id).Error; err != nil {
		t.Fatalf("reload configuration: %v", err)
	}
	return &cfg
}

func (f *fixture) reloadInstance(t *testing.T, id string) *models.PromptInstance {
	t.Helper()
	var inst models.PromptInstance
	if err := f.db.First(&inst, "id = ?", id).Error; err != nil {
		t.Fatalf("reload instance: %v", err)
	}
	return &inst
}

func (f *fixture) reloadRun(t *testing.T, id string) *models.GenerationRun {
	t.Helper()
	var run models.GenerationRun
	if err := f.db.First(&run, "id = ?", id).Error; err != nil {
		t.Fatalf("reload run: %v", err)
	}
	return &run
}

func (f *fixture) matches(t *testing.T, instanceID string) []*models.RatingMatch {
	t.Helper()
	var out []*models.RatingMatch
	if err := f.db.Where("prompt_instance_id = ?", instanceID).Order("round ASC, slot ASC").Find(&out).Error; err != nil {
		t.Fatalf("list matches: %v", err)
	}
	return out
}

func setConfigStatus(t *testing.T, db *gorm.DB, id string, status models.ConfigurationStatus) {
	t.Helper()
	if err := db.Model(&models.Configuration{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		t.Fatalf("set configuration status: %v", err)
	}
}
