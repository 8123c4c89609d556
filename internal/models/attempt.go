package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt statuses.
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusGraded     = "graded"
	AttemptStatusRejected   = "rejected"
)

// Telemetry event types reported by the quiz client.
const (
	TelemetryBlur           = "blur"
	TelemetryFullscreenExit = "fullscreen_exit"
	TelemetryPaste          = "paste"
	TelemetryHeartbeat      = "heartbeat"
)

// Attempt is a candidate's single run at an assignment. Answers holds a JSON
// object keyed by question ID; Breakdown the per-question grading detail.
type Attempt struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssignmentID uint           `gorm:"not null;uniqueIndex:idx_attempt_once" json:"assignment_id"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_attempt_once" json:"user_id"`
	Status       string         `gorm:"size:16;not null;default:in_progress" json:"status"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	Deadline     time.Time      `gorm:"not null" json:"deadline"`
	SubmittedAt  *time.Time     `json:"submitted_at"`
	Late         bool           `gorm:"not null;default:false" json:"late"`
	Answers      datatypes.JSON `gorm:"type:json" json:"answers"`
	Breakdown    datatypes.JSON `gorm:"type:json" json:"breakdown"`

	Score      *float64 `json:"score"`
	RawScore   *float64 `json:"raw_score"`
	Passed     *bool    `json:"passed"`
	Feedback   string   `gorm:"type:text" json:"feedback"`
	GradedAt   *time.Time `json:"graded_at"`
	OverriddenBy *uint    `json:"overridden_by"`

	// Anti-cheat telemetry counters.
	BlurCount       int  `gorm:"not null;default:0" json:"blur_count"`
	FullscreenExits int  `gorm:"not null;default:0" json:"fullscreen_exits"`
	PasteCount      int  `gorm:"not null;default:0" json:"paste_count"`
	Flagged         bool `gorm:"not null;default:false" json:"flagged"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Assignment Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	User       User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}

// IsGraded reports whether the attempt carries a final score.
func (a Attempt) IsGraded() bool {
	return a.Status == AttemptStatusGraded
}

// AttemptGradeHistory records every grade applied to an attempt, including
// admin overrides.
type AttemptGradeHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AttemptID uint      `gorm:"not null;index" json:"attempt_id"`
	Score     float64   `gorm:"not null" json:"score"`
	Feedback  string    `gorm:"type:text" json:"feedback"`
	GradedBy  *uint     `json:"graded_by"`
	GradedAt  time.Time `gorm:"not null" json:"graded_at"`
}
