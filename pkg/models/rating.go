package models

import (
	"time"

	"gorm.io/gorm"
)

// RatingMatch is a pairwise comparison between two completions of the same
// instance. Slot orders the matches inside a round; (instance, round, slot)
// is unique so a round can only be seeded once.
type RatingMatch struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	PromptInstanceID string    `gorm:"type:uuid;not null;uniqueIndex:uq_match_slot,priority:1" json:"promptInstanceId"`
	ConfigurationID  string    `gorm:"type:uuid;not null;index" json:"configurationId"`
	Round            int       `gorm:"not null;uniqueIndex:uq_match_slot,priority:2" json:"round"`
	Slot             int       `gorm:"not null;uniqueIndex:uq_match_slot,priority:3" json:"slot"`
	OptionAID        string    `gorm:"type:uuid;not null" json:"optionAId"`
	OptionBID        string    `gorm:"type:uuid;not null" json:"optionBId"`
	WinnerID         *string   `gorm:"type:uuid" json:"winnerId,omitempty"`
	IsComplete       bool      `gorm:"not null;default:false" json:"isComplete"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (m *RatingMatch) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// Loser returns the option that did not win, or "" while undecided.
func (m *RatingMatch) Loser() string {
	if m.WinnerID == nil {
		return ""
	}
	if *m.WinnerID == m.OptionAID {
		return m.OptionBID
	}
	return m.OptionAID
}

// RatingResponse is one rater's pick for a match.
type RatingResponse struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	MatchID      string    `gorm:"type:uuid;not null;index" json:"matchId"`
	RaterID      string    `gorm:"not null" json:"raterId"`
	CompletionID string    `gorm:"type:uuid;not null" json:"completionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *RatingResponse) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// FinalWinner records the completion that won an instance's tournament.
type FinalWinner struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	PromptInstanceID string    `gorm:"type:uuid;not null;uniqueIndex" json:"promptInstanceId"`
	CompletionID     string    `gorm:"type:uuid;not null" json:"completionId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (w *FinalWinner) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}
