package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"huddle-admin/backend/internal/auth"
	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// RunHistoryLimit caps RunHistory.
const RunHistoryLimit = 10

// Orchestrator owns the configuration lifecycle, run tracking, bracket
// seeding and recovery operations.
type Orchestrator struct {
	repo    repository.Repository
	log     *logging.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewOrchestrator creates a new Orchestrator. metrics may be nil.
func NewOrchestrator(repo repository.Repository, logger *logging.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		repo:    repo,
		log:     logger.With("service", "Orchestrator"),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// authorize returns the tenant the session may manage.
func authorize(sess models.Session) (string, error) {
	if sess.UserID == "" {
		return "", ErrUnauthorized
	}
	if !auth.CanManage(sess, sess.TenantID) {
		return "", ErrForbidden
	}
	return sess.TenantID, nil
}

func storeErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ConfigurationInput is the admin-supplied part of a Configuration.
type ConfigurationInput struct {
	Name                   string `json:"name"`
	PromptTemplate         string `json:"promptTemplate"`
	ModelProvider          string `json:"modelProvider"`
	ModelName              string `json:"modelName"`
	GenerationsPerInstance int    `json:"generationsPerInstance"`
}

func (in *ConfigurationInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.PromptTemplate) == "" {
		missing = append(missing, "promptTemplate")
	}
	if strings.TrimSpace(in.ModelProvider) == "" {
		missing = append(missing, "modelProvider")
	}
	if strings.TrimSpace(in.ModelName) == "" {
		missing = append(missing, "modelName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s: %w", strings.Join(missing, ", "), ErrValidation)
	}
	if in.GenerationsPerInstance == 0 {
		in.GenerationsPerInstance = MinBracketSize
	}
	if in.GenerationsPerInstance < MinBracketSize {
		return fmt.Errorf("generationsPerInstance must be at least %d: %w", MinBracketSize, ErrValidation)
	}
	return nil
}

// CreateConfiguration creates a DRAFT configuration in the caller's tenant.
func (o *Orchestrator) CreateConfiguration(ctx context.Context, sess models.Session, in ConfigurationInput) (*models.Configuration, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	cfg := &models.Configuration{
		TenantID:               tenantID,
		Name:                   strings.TrimSpace(in.Name),
		PromptTemplate:         in.PromptTemplate,
		ModelProvider:          in.ModelProvider,
		ModelName:              in.ModelName,
		GenerationsPerInstance: in.GenerationsPerInstance,
		Status:                 models.ConfigurationDraft,
		CreatedBy:              sess.UserID,
	}
	if err := o.repo.CreateConfiguration(ctx, cfg); err != nil {
		return nil, storeErr(err, "create configuration")
	}
	o.log.Info("configuration created", "tenant_id", tenantID, "configuration_id", cfg.ID)
	return cfg, nil
}

// GetConfiguration returns one configuration of the caller's tenant.
func (o *Orchestrator) GetConfiguration(ctx context.Context, sess models.Session, configID string) (*models.Configuration, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	cfg, err := o.repo.GetConfiguration(ctx, tenantID, configID)
	if err != nil {
		return nil, storeErr(err, "get configuration")
	}
	return cfg, nil
}

// ListConfigurations returns the caller's configurations, newest first.
func (o *Orchestrator) ListConfigurations(ctx context.Context, sess models.Session) ([]*models.Configuration, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	cfgs, err := o.repo.ListConfigurations(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err, "list configurations")
	}
	return cfgs, nil
}

// AddInstances appends PENDING instances to a DRAFT configuration.
func (o *Orchestrator) AddInstances(ctx context.Context, sess models.Session, configID string, inputs []map[string]any) ([]*models.PromptInstance, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one instance input is required: %w", ErrValidation)
	}

	instances := make([]*models.PromptInstance, 0, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("instance %d has no input: %w", i, ErrValidation)
		}
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("instance %d input: %v: %w", i, err, ErrValidation)
		}
		instances = append(instances, &models.PromptInstance{
			ConfigurationID: configID,
			Input:           datatypes.JSON(raw),
			Status:          models.InstancePending,
		})
	}

	err = o.repo.Transaction(ctx, func(tx repository.Repository) error {
		cfg, err := tx.LockConfiguration(ctx, tenantID, configID)
		if err != nil {
			return storeErr(err, "load configuration")
		}
		if cfg.Status != models.ConfigurationDraft {
			return fmt.Errorf("instances can only be added to a DRAFT configuration: %w", ErrInvalidTransition)
		}
		return tx.CreateInstances(ctx, instances)
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// StartRun queues a generation run over the configuration's PENDING
// instances and moves the configuration to EXECUTING. The configuration row
// lock and the one-active-run index make concurrent callers see exactly one
// success.
func (o *Orchestrator) StartRun(ctx context.Context, sess models.Session, configID string) (*models.GenerationRun, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}

	var run *models.GenerationRun
	err = o.repo.Transaction(ctx, func(tx repository.Repository) error {
		cfg, err := tx.LockConfiguration(ctx, tenantID, configID)
		if err != nil {
			return storeErr(err, "load configuration")
		}

		active, err := tx.ActiveRun(ctx, cfg.ID)
		if err != nil {
			return storeErr(err, "load active run")
		}
		if active != nil || cfg.Status == models.ConfigurationExecuting {
			return ErrRunAlreadyInProgress
		}
		if cfg.Status != models.ConfigurationDraft {
			return fmt.Errorf("configuration is %s, reset it first: %w", cfg.Status, ErrInvalidTransition)
		}

		pending, err := tx.CountInstances(ctx, cfg.ID, models.InstancePending)
		if err != nil {
			return storeErr(err, "count pending instances")
		}
		if pending == 0 {
			return ErrNoPendingWork
		}

		run = &models.GenerationRun{
			ConfigurationID: cfg.ID,
			Status:          models.RunQueued,
			ModelProvider:   cfg.ModelProvider,
			ModelName:       cfg.ModelName,
			TotalInstances:  int(pending),
			TriggeredBy:     sess.UserID,
		}
		if err := tx.CreateRun(ctx, run); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrRunAlreadyInProgress
			}
			return storeErr(err, "create run")
		}
		return tx.SetConfigurationStatus(ctx, cfg.ID, models.ConfigurationExecuting)
	})
	if err != nil {
		return nil, err
	}

	o.metrics.runStarted(ctx, tenantID)
	o.log.Info("generation run queued",
		"tenant_id", tenantID,
		"configuration_id", configID,
		"run_id", run.ID,
		"total_instances", run.TotalInstances,
	)
	return run, nil
}

// RunHistory returns the configuration's most recent runs, newest first.
func (o *Orchestrator) RunHistory(ctx context.Context, sess models.Session, configID string) ([]*models.GenerationRun, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if _, err := o.repo.GetConfiguration(ctx, tenantID, configID); err != nil {
		return nil, storeErr(err, "load configuration")
	}
	runs, err := o.repo.ListRuns(ctx, configID, RunHistoryLimit)
	if err != nil {
		return nil, storeErr(err, "list runs")
	}
	return runs, nil
}
