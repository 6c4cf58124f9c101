package models

import (
	"time"

	"gorm.io/gorm"
)

// RunStatus is the state of a GenerationRun.
type RunStatus string

const (
	RunQueued    RunStatus = "QUEUED"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// ActiveRunStatuses are the non-terminal run states. A configuration has at
// most one run in any of them.
var ActiveRunStatuses = []RunStatus{RunQueued, RunRunning}

// IsActive reports whether the status is non-terminal.
func (s RunStatus) IsActive() bool {
	return s == RunQueued || s == RunRunning
}

// GenerationRun is one worker pass over the pending instances of a
// configuration.
type GenerationRun struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	ConfigurationID string     `gorm:"type:uuid;not null;index" json:"configurationId"`
	Status          RunStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	ModelProvider   string     `json:"modelProvider"`
	ModelName       string     `json:"modelName"`
	TotalInstances  int        `gorm:"not null;default:0" json:"totalInstances"`
	ProcessedCount  int        `gorm:"not null;default:0" json:"processedCount"`
	Error           string     `json:"error,omitempty"`
	TriggeredBy     string     `json:"triggeredBy,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (r *GenerationRun) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
