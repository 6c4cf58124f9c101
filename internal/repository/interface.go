package repository

import (
	"context"
	"errors"
	"time"

	"huddle-admin/backend/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row. Tenant-scoped lookups
// also return it for rows owned by another tenant.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// including the one-active-run-per-configuration index.
var ErrDuplicate = errors.New("duplicate record")

// StatusCount is one row of a grouped instance count.
type StatusCount struct {
	ConfigurationID string
	Status          models.InstanceStatus
	Count           int64
}

// Repository is the persistence boundary for the rating console. Every method
// runs on the transaction when called through Transaction.
type Repository interface {
	// Transaction runs fn inside a single database transaction. Returning an
	// error from fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error

	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error

	CreateConfiguration(ctx context.Context, cfg *models.Configuration) error
	// GetConfiguration returns the configuration only if it belongs to tenantID.
	GetConfiguration(ctx context.Context, tenantID, id string) (*models.Configuration, error)
	// LockConfiguration is GetConfiguration with a row lock held until the
	// surrounding transaction ends.
	LockConfiguration(ctx context.Context, tenantID, id string) (*models.Configuration, error)
	// GetConfigurationByID is unscoped; only the worker path uses it.
	GetConfigurationByID(ctx context.Context, id string) (*models.Configuration, error)
	ListConfigurations(ctx context.Context, tenantID string) ([]*models.Configuration, error)
	SetConfigurationStatus(ctx context.Context, id string, status models.ConfigurationStatus) error

	CreateInstances(ctx context.Context, instances []*models.PromptInstance) error
	LockInstance(ctx context.Context, id string) (*models.PromptInstance, error)
	CountInstances(ctx context.Context, configID string, status models.InstanceStatus) (int64, error)
	// ListInstances returns instances in the given statuses with their
	// completions preloaded in ascending index order.
	ListInstances(ctx context.Context, configID string, statuses ...models.InstanceStatus) ([]*models.PromptInstance, error)
	SetInstanceStatus(ctx context.Context, ids []string, status models.InstanceStatus) (int64, error)
	// ResetInstances moves every non-PENDING instance of the configuration back
	// to PENDING.
	ResetInstances(ctx context.Context, configID string) (int64, error)
	CountInstancesByStatus(ctx context.Context, configIDs []string) ([]StatusCount, error)

	CreateCompletion(ctx context.Context, completion *models.Completion) error
	CountCompletions(ctx context.Context, instanceID string) (int64, error)
	ListCompletions(ctx context.Context, instanceID string) ([]models.Completion, error)
	DeleteCompletions(ctx context.Context, configID string) (int64, error)

	CreateRun(ctx context.Context, run *models.GenerationRun) error
	// ActiveRun returns the QUEUED or RUNNING run, or nil when none exists.
	ActiveRun(ctx context.Context, configID string) (*models.GenerationRun, error)
	ListRuns(ctx context.Context, configID string, limit int) ([]*models.GenerationRun, error)
	ListTenantRuns(ctx context.Context, tenantID string) ([]*models.GenerationRun, error)
	UpdateRun(ctx context.Context, run *models.GenerationRun) error
	// FinishActiveRuns moves every QUEUED/RUNNING run of the configuration to
	// status and stamps completedAt.
	FinishActiveRuns(ctx context.Context, configID string, status models.RunStatus, at time.Time) (int64, error)
	DeleteRuns(ctx context.Context, configID string) (int64, error)

	CountMatches(ctx context.Context, instanceID string) (int64, error)
	// InsertMatches inserts the matches, skipping any whose
	// (instance, round, slot) already exists, and reports how many were new.
	InsertMatches(ctx context.Context, matches []*models.RatingMatch) (int64, error)
	GetMatch(ctx context.Context, id string) (*models.RatingMatch, error)
	ListInstanceMatches(ctx context.Context, instanceID string) ([]*models.RatingMatch, error)
	ListMatches(ctx context.Context, configID string) ([]*models.RatingMatch, error)
	DecideMatch(ctx context.Context, id, winnerID string) (bool, error)
	DeleteMatches(ctx context.Context, configID string) (int64, error)

	CreateResponse(ctx context.Context, response *models.RatingResponse) error
	CountResponses(ctx context.Context, configID string) (int64, error)

	// CreateFinalWinner is a no-op when the instance already has a winner.
	CreateFinalWinner(ctx context.Context, winner *models.FinalWinner) (bool, error)
	DeleteFinalWinners(ctx context.Context, configID string) (int64, error)

	CreateEmployees(ctx context.Context, employees []*models.Employee) error
	ListEmployees(ctx context.Context, tenantID string) ([]*models.Employee, error)
}
