package models

import "time"

// Late policy values for an assignment.
const (
	LatePolicyReject  = "reject"
	LatePolicyPenalty = "penalty"
)

// Assignment schedules a quiz for a class with its scoring rules and
// branch eligibility filter.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	QuizID      uint      `gorm:"not null;index" json:"quiz_id"`
	ClassID     uint      `gorm:"not null;index" json:"class_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	OpensAt     time.Time `gorm:"not null" json:"opens_at"`
	ClosesAt    time.Time `gorm:"not null" json:"closes_at"`
	DurationMin int       `gorm:"not null" json:"duration_min"`

	// Scoring rules. Question weights are scaled so the full quiz is worth
	// TotalMarks; NegativeFraction of a question's marks is deducted for a
	// wrong single/truefalse answer.
	TotalMarks       float64 `gorm:"not null;default:100" json:"total_marks"`
	NegativeFraction float64 `gorm:"not null;default:0" json:"negative_fraction"`
	PassPercent      float64 `gorm:"not null;default:0" json:"pass_percent"`

	LatePolicy      string `gorm:"size:16;not null;default:reject" json:"late_policy"`
	LatePenaltyPct  float64 `gorm:"not null;default:0" json:"late_penalty_pct"`
	LateGraceMin    int    `gorm:"not null;default:0" json:"late_grace_min"`

	// Comma-separated branch globs, e.g. "CSE-*,ECE-2026". Empty means the
	// whole class roster is eligible.
	BranchPatterns string `gorm:"size:512" json:"branch_patterns"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Quiz      Quiz      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"quiz"`
	Class     Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// WindowOpen reports whether attempts may start at the reference time.
func (a Assignment) WindowOpen(reference time.Time) bool {
	return !reference.Before(a.OpensAt) && reference.Before(a.ClosesAt)
}

// GraceDeadline is the last instant a late submission is still accepted.
func (a Assignment) GraceDeadline() time.Time {
	return a.ClosesAt.Add(time.Duration(a.LateGraceMin) * time.Minute)
}
