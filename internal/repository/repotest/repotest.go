// Package repotest provides an in-memory database and fixtures for tests
// that need a real Repository.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// DB opens a private in-memory SQLite database with the schema migrated. A
// single connection keeps every statement on the same memory database and
// serializes transactions the way row locks would on Postgres.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", uuid.NewString())
	db, err := repository.OpenGorm(sqlite.Open(dsn), logging.NewNop())
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(context.Background(), db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// Store returns a GormStore over a fresh in-memory database.
func Store(tb testing.TB) (*repository.GormStore, *gorm.DB) {
	tb.Helper()
	db := DB(tb)
	return repository.NewGormStore(db, logging.NewNop()), db
}

func SeedTenant(tb testing.TB, db *gorm.DB, domain string) *models.Tenant {
	tb.Helper()
	t := &models.Tenant{Name: domain, Domain: domain}
	if err := db.Create(t).Error; err != nil {
		tb.Fatalf("seed tenant: %v", err)
	}
	return t
}

func SeedConfiguration(tb testing.TB, db *gorm.DB, tenantID string, generations int) *models.Configuration {
	tb.Helper()
	c := &models.Configuration{
		TenantID:               tenantID,
		Name:                   "summaries",
		PromptTemplate:         "Summarize {{transcript}}",
		ModelProvider:          "openai",
		ModelName:              "gpt-4o-mini",
		GenerationsPerInstance: generations,
		Status:                 models.ConfigurationDraft,
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed configuration: %v", err)
	}
	return c
}

func SeedInstance(tb testing.TB, db *gorm.DB, configID string, status models.InstanceStatus) *models.PromptInstance {
	tb.Helper()
	i := &models.PromptInstance{
		ConfigurationID: configID,
		Input:           datatypes.JSON([]byte(`{"transcript":"standup notes"}`)),
		Status:          status,
	}
	if err := db.Create(i).Error; err != nil {
		tb.Fatalf("seed instance: %v", err)
	}
	return i
}

// SeedCompletions appends n completions with consecutive indexes after any
// the instance already has.
func SeedCompletions(tb testing.TB, db *gorm.DB, instanceID string, n int) []models.Completion {
	tb.Helper()
	var existing int64
	if err := db.Model(&models.Completion{}).Where("prompt_instance_id = ?", instanceID).Count(&existing).Error; err != nil {
		tb.Fatalf("count completions: %v", err)
	}
	out := make([]models.Completion, 0, n)
	for i := 0; i < n; i++ {
		c := models.Completion{
			PromptInstanceID: instanceID,
			Index:            int(existing) + i,
			Text:             fmt.Sprintf("candidate %d", int(existing)+i),
		}
		if err := db.Create(&c).Error; err != nil {
			tb.Fatalf("seed completion: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func SeedRun(tb testing.TB, db *gorm.DB, configID string, status models.RunStatus, total int) *models.GenerationRun {
	tb.Helper()
	r := &models.GenerationRun{
		ConfigurationID: configID,
		Status:          status,
		ModelProvider:   "openai",
		ModelName:       "gpt-4o-mini",
		TotalInstances:  total,
	}
	if err := db.Create(r).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return r
}

func SeedMatch(tb testing.TB, db *gorm.DB, inst *models.PromptInstance, round, slot int, a, b string) *models.RatingMatch {
	tb.Helper()
	m := &models.RatingMatch{
		PromptInstanceID: inst.ID,
		ConfigurationID:  inst.ConfigurationID,
		Round:            round,
		Slot:             slot,
		OptionAID:        a,
		OptionBID:        b,
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed match: %v", err)
	}
	return m
}

func SeedFinalWinner(tb testing.TB, db *gorm.DB, instanceID, completionID string) *models.FinalWinner {
	tb.Helper()
	w := &models.FinalWinner{PromptInstanceID: instanceID, CompletionID: completionID}
	if err := db.Create(w).Error; err != nil {
		tb.Fatalf("seed final winner: %v", err)
	}
	return w
}

// Count returns the number of rows of the model's table matching the query.
func Count(tb testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	tb.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count: %v", err)
	}
	return n
}
