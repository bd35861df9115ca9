package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRequestEdit       = "REQUEST_EDIT"
	ActionRequestTransition = "REQUEST_TRANSITION"
	ActionRequestCascade    = "REQUEST_CASCADE"
	ActionRequestCreate     = "REQUEST_CREATE"
	ActionRequestMass       = "REQUEST_MASS_CREATE"
	ActionRequestImport     = "REQUEST_IMPORT"

	ActionReposicionCreate     = "REPOSICION_CREATE"
	ActionReposicionTransition = "REPOSICION_TRANSITION"
)

// Outcome of a journaled action
const (
	OutcomeCommitted  = "committed"
	OutcomeUndone     = "undone"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// Entity types
const (
	EntityRequest    = "request"
	EntityReposicion = "reposicion"
)

// ActionLog tracks who did what to which entity and how it ended.
type ActionLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(64);index" json:"user_id"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(20);not null" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(64);index" json:"entity_id"`
	Outcome    string    `gorm:"type:varchar(20);not null;index" json:"outcome"`
	Details    string    `gorm:"type:text" json:"details"` // JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (l *ActionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
