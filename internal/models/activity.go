package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity action and entity names recorded in the audit trail.
const (
	ActivityActionGradeOverride = "grade.override"
	ActivityEntityAttempt       = "attempt"
)

// ActivityLog records an auditable admin action, such as overriding a grade.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
