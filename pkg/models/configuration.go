package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConfigurationStatus is the lifecycle state of a Configuration.
type ConfigurationStatus string

const (
	ConfigurationDraft     ConfigurationStatus = "DRAFT"
	ConfigurationExecuting ConfigurationStatus = "EXECUTING"
	ConfigurationCompleted ConfigurationStatus = "COMPLETED"
)

// InstanceStatus is the lifecycle state of a PromptInstance.
type InstanceStatus string

const (
	InstancePending        InstanceStatus = "PENDING"
	InstanceGenerating     InstanceStatus = "GENERATING"
	InstanceReadyForRating InstanceStatus = "READY_FOR_RATING"
	InstanceRated          InstanceStatus = "RATED"
	InstanceSkipped        InstanceStatus = "SKIPPED"
)

// Configuration is a tenant-owned prompt template plus the generation
// parameters used when a run is started against it.
type Configuration struct {
	ID                     string              `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID               string              `gorm:"type:uuid;not null;index" json:"tenantId"`
	Name                   string              `gorm:"not null" json:"name"`
	PromptTemplate         string              `gorm:"type:text;not null" json:"promptTemplate"`
	ModelProvider          string              `gorm:"not null" json:"modelProvider"`
	ModelName              string              `gorm:"not null" json:"modelName"`
	GenerationsPerInstance int                 `gorm:"not null;default:2" json:"generationsPerInstance"`
	Status                 ConfigurationStatus `gorm:"type:varchar(16);not null;default:DRAFT;index" json:"status"`
	CreatedBy              string              `json:"createdBy,omitempty"`
	CreatedAt              time.Time           `json:"createdAt"`
	UpdatedAt              time.Time           `json:"updatedAt"`
}

func (c *Configuration) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	if c.Status == "" {
		c.Status = ConfigurationDraft
	}
	return nil
}

// PromptInstance is one set of variable bindings run through a Configuration.
type PromptInstance struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	ConfigurationID string         `gorm:"type:uuid;not null;index" json:"configurationId"`
	Input           datatypes.JSON `json:"input"`
	Status          InstanceStatus `gorm:"type:varchar(24);not null;default:PENDING;index" json:"status"`
	Completions     []Completion   `gorm:"foreignKey:PromptInstanceID" json:"completions,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (p *PromptInstance) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	if p.Status == "" {
		p.Status = InstancePending
	}
	return nil
}

// Completion is one generated candidate for an instance. Index is the
// 0-based generation order and is unique per instance.
type Completion struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	PromptInstanceID string         `gorm:"type:uuid;not null;uniqueIndex:uq_completion_slot,priority:1" json:"promptInstanceId"`
	Index            int            `gorm:"column:idx;not null;uniqueIndex:uq_completion_slot,priority:2" json:"index"`
	Text             string         `gorm:"type:text;not null" json:"text"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func (c *Completion) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
