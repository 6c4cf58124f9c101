package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/pkg/models"
)

// GormStore is the GORM implementation of Repository.
type GormStore struct {
	db  *gorm.DB
	log *logging.Logger
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB, logger *logging.Logger) *GormStore {
	return &GormStore{db: db, log: logger.With("repo", "GormStore")}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, log: s.log})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Tenants

func (s *GormStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&tenant).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (s *GormStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	return translate(s.db.WithContext(ctx).Create(tenant).Error)
}

// Configurations

func (s *GormStore) CreateConfiguration(ctx context.Context, cfg *models.Configuration) error {
	return translate(s.db.WithContext(ctx).Create(cfg).Error)
}

func (s *GormStore) GetConfiguration(ctx context.Context, tenantID, id string) (*models.Configuration, error) {
	var cfg models.Configuration
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&cfg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

func (s *GormStore) LockConfiguration(ctx context.Context, tenantID, id string) (*models.Configuration, error) {
	var cfg models.Configuration
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&cfg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

func (s *GormStore) GetConfigurationByID(ctx context.Context, id string) (*models.Configuration, error) {
	var cfg models.Configuration
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error; err != nil {
		return nil, translate(err)
	}
	return &cfg, nil
}

func (s *GormStore) ListConfigurations(ctx context.Context, tenantID string) ([]*models.Configuration, error) {
	var out []*models.Configuration
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) SetConfigurationStatus(ctx context.Context, id string, status models.ConfigurationStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.Configuration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Instances

func (s *GormStore) CreateInstances(ctx context.Context, instances []*models.PromptInstance) error {
	if len(instances) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(&instances).Error)
}

func (s *GormStore) LockInstance(ctx context.Context, id string) (*models.PromptInstance, error) {
	var inst models.PromptInstance
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&inst).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inst, nil
}

func (s *GormStore) CountInstances(ctx context.Context, configID string, status models.InstanceStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.PromptInstance{}).
		Where("configuration_id = ? AND status = ?", configID, status).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) ListInstances(ctx context.Context, configID string, statuses ...models.InstanceStatus) ([]*models.PromptInstance, error) {
	var out []*models.PromptInstance
	q := s.db.WithContext(ctx).
		Preload("Completions", func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }).
		Where("configuration_id = ?", configID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) SetInstanceStatus(ctx context.Context, ids []string, status models.InstanceStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.PromptInstance{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) ResetInstances(ctx context.Context, configID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PromptInstance{}).
		Where("configuration_id = ? AND status <> ?", configID, models.InstancePending).
		Updates(map[string]interface{}{"status": models.InstancePending, "updated_at": time.Now()})
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) CountInstancesByStatus(ctx context.Context, configIDs []string) ([]StatusCount, error) {
	var out []StatusCount
	if len(configIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.PromptInstance{}).
		Select("configuration_id, status, COUNT(*) AS count").
		Where("configuration_id IN ?", configIDs).
		Group("configuration_id, status").
		Scan(&out).Error
	return out, translate(err)
}

// Completions

func (s *GormStore) CreateCompletion(ctx context.Context, completion *models.Completion) error {
	return translate(s.db.WithContext(ctx).Create(completion).Error)
}

func (s *GormStore) CountCompletions(ctx context.Context, instanceID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Completion{}).
		Where("prompt_instance_id = ?", instanceID).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) ListCompletions(ctx context.Context, instanceID string) ([]models.Completion, error) {
	var out []models.Completion
	err := s.db.WithContext(ctx).
		Where("prompt_instance_id = ?", instanceID).
		Order("idx ASC").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) DeleteCompletions(ctx context.Context, configID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("prompt_instance_id IN (?)", s.instanceIDs(ctx, configID)).
		Delete(&models.Completion{})
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) instanceIDs(ctx context.Context, configID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.PromptInstance{}).
		Select("id").
		Where("configuration_id = ?", configID)
}

// Runs

func (s *GormStore) CreateRun(ctx context.Context, run *models.GenerationRun) error {
	return translate(s.db.WithContext(ctx).Create(run).Error)
}

func (s *GormStore) ActiveRun(ctx context.Context, configID string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	err := s.db.WithContext(ctx).
		Where("configuration_id = ? AND status IN ?", configID, models.ActiveRunStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, translate(err)
	}
	if run.ID == "" {
		return nil, nil
	}
	return &run, nil
}

func (s *GormStore) ListRuns(ctx context.Context, configID string, limit int) ([]*models.GenerationRun, error) {
	var out []*models.GenerationRun
	q := s.db.WithContext(ctx).
		Where("configuration_id = ?", configID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) ListTenantRuns(ctx context.Context, tenantID string) ([]*models.GenerationRun, error) {
	var out []*models.GenerationRun
	err := s.db.WithContext(ctx).
		Model(&models.GenerationRun{}).
		Select("generation_runs.*").
		Joins("JOIN configurations ON configurations.id = generation_runs.configuration_id").
		Where("configurations.tenant_id = ?", tenantID).
		Order("generation_runs.created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) UpdateRun(ctx context.Context, run *models.GenerationRun) error {
	run.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).
		Model(&models.GenerationRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":          run.Status,
			"processed_count": run.ProcessedCount,
			"error":           run.Error,
			"started_at":      run.StartedAt,
			"completed_at":    run.CompletedAt,
			"updated_at":      run.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) FinishActiveRuns(ctx context.Context, configID string, status models.RunStatus, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.GenerationRun{}).
		Where("configuration_id = ? AND status IN ?", configID, models.ActiveRunStatuses).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) DeleteRuns(ctx context.Context, configID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("configuration_id = ?", configID).
		Delete(&models.GenerationRun{})
	return res.RowsAffected, translate(res.Error)
}

// Matches

func (s *GormStore) CountMatches(ctx context.Context, instanceID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.RatingMatch{}).
		Where("prompt_instance_id = ?", instanceID).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) InsertMatches(ctx context.Context, matches []*models.RatingMatch) (int64, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&matches)
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.RatingMatch, error) {
	var m models.RatingMatch
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) ListInstanceMatches(ctx context.Context, instanceID string) ([]*models.RatingMatch, error) {
	var out []*models.RatingMatch
	err := s.db.WithContext(ctx).
		Where("prompt_instance_id = ?", instanceID).
		Order("round ASC, slot ASC").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) ListMatches(ctx context.Context, configID string) ([]*models.RatingMatch, error) {
	var out []*models.RatingMatch
	err := s.db.WithContext(ctx).
		Where("configuration_id = ?", configID).
		Order("prompt_instance_id ASC, round ASC, slot ASC").
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) DecideMatch(ctx context.Context, id, winnerID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.RatingMatch{}).
		Where("id = ? AND is_complete = ?", id, false).
		Updates(map[string]interface{}{
			"winner_id":   winnerID,
			"is_complete": true,
			"updated_at":  time.Now(),
		})
	return res.RowsAffected > 0, translate(res.Error)
}

// DeleteMatches removes the configuration's matches together with the
// responses recorded against them. Only matches are counted.
func (s *GormStore) DeleteMatches(ctx context.Context, configID string) (int64, error) {
	matchIDs := s.db.WithContext(ctx).
		Model(&models.RatingMatch{}).
		Select("id").
		Where("configuration_id = ?", configID)
	if err := s.db.WithContext(ctx).
		Where("match_id IN (?)", matchIDs).
		Delete(&models.RatingResponse{}).Error; err != nil {
		return 0, translate(err)
	}
	res := s.db.WithContext(ctx).
		Where("configuration_id = ?", configID).
		Delete(&models.RatingMatch{})
	return res.RowsAffected, translate(res.Error)
}

// Responses

func (s *GormStore) CreateResponse(ctx context.Context, response *models.RatingResponse) error {
	return translate(s.db.WithContext(ctx).Create(response).Error)
}

func (s *GormStore) CountResponses(ctx context.Context, configID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.RatingResponse{}).
		Joins("JOIN rating_matches ON rating_matches.id = rating_responses.match_id").
		Where("rating_matches.configuration_id = ?", configID).
		Count(&n).Error
	return n, translate(err)
}

// Final winners

func (s *GormStore) CreateFinalWinner(ctx context.Context, winner *models.FinalWinner) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(winner)
	return res.RowsAffected > 0, translate(res.Error)
}

func (s *GormStore) DeleteFinalWinners(ctx context.Context, configID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("prompt_instance_id IN (?)", s.instanceIDs(ctx, configID)).
		Delete(&models.FinalWinner{})
	return res.RowsAffected, translate(res.Error)
}

// Employees

func (s *GormStore) CreateEmployees(ctx context.Context, employees []*models.Employee) error {
	if len(employees) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(&employees).Error)
}

func (s *GormStore) ListEmployees(ctx context.Context, tenantID string) ([]*models.Employee, error) {
	var out []*models.Employee
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&out).Error
	return out, translate(err)
}
