// Package models defines the persisted domain models for the rating console.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is the isolation boundary for every configuration and employee.
type Tenant struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Domain    string    `gorm:"not null;uniqueIndex" json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Employee is a node in a tenant's manager hierarchy.
type Employee struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string    `gorm:"type:uuid;not null;index" json:"tenantId"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email,omitempty"`
	ManagerID *string   `gorm:"type:uuid;index" json:"managerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *Employee) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
