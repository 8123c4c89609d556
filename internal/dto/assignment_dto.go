package dto

import (
	"time"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// AssignmentCreateRequest describes the payload for scheduling a quiz.
type AssignmentCreateRequest struct {
	QuizID           uint    `json:"quiz_id" validate:"required"`
	ClassID          uint    `json:"class_id" validate:"required"`
	Title            string  `json:"title" validate:"required,min=3"`
	OpensAt          string  `json:"opens_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ClosesAt         string  `json:"closes_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMin      int     `json:"duration_min" validate:"required,min=1"`
	TotalMarks       float64 `json:"total_marks" validate:"omitempty,gt=0"`
	NegativeFraction float64 `json:"negative_fraction" validate:"omitempty,gte=0,lte=1"`
	PassPercent      float64 `json:"pass_percent" validate:"omitempty,gte=0,lte=100"`
	LatePolicy       string  `json:"late_policy" validate:"omitempty,oneof=reject penalty"`
	LatePenaltyPct   float64 `json:"late_penalty_pct" validate:"omitempty,gte=0,lte=100"`
	LateGraceMin     int     `json:"late_grace_min" validate:"omitempty,gte=0"`
	BranchPatterns   string  `json:"branch_patterns" validate:"omitempty,max=512"`
}

// AssignmentUpdateRequest describes the payload for amending an assignment.
type AssignmentUpdateRequest struct {
	Title          *string  `json:"title" validate:"omitempty,min=3"`
	OpensAt        *string  `json:"opens_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ClosesAt       *string  `json:"closes_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMin    *int     `json:"duration_min" validate:"omitempty,min=1"`
	PassPercent    *float64 `json:"pass_percent" validate:"omitempty,gte=0,lte=100"`
	LatePolicy     *string  `json:"late_policy" validate:"omitempty,oneof=reject penalty"`
	LatePenaltyPct *float64 `json:"late_penalty_pct" validate:"omitempty,gte=0,lte=100"`
	LateGraceMin   *int     `json:"late_grace_min" validate:"omitempty,gte=0"`
	BranchPatterns *string  `json:"branch_patterns" validate:"omitempty,max=512"`
}

// AssignmentResponse is the serialized assignment representation.
type AssignmentResponse struct {
	ID               uint      `json:"id"`
	QuizID           uint      `json:"quiz_id"`
	ClassID          uint      `json:"class_id"`
	Title            string    `json:"title"`
	QuizTitle        string    `json:"quiz_title,omitempty"`
	OpensAt          time.Time `json:"opens_at"`
	ClosesAt         time.Time `json:"closes_at"`
	DurationMin      int       `json:"duration_min"`
	TotalMarks       float64   `json:"total_marks"`
	NegativeFraction float64   `json:"negative_fraction"`
	PassPercent      float64   `json:"pass_percent"`
	LatePolicy       string    `json:"late_policy"`
	LatePenaltyPct   float64   `json:"late_penalty_pct"`
	LateGraceMin     int       `json:"late_grace_min"`
	BranchPatterns   string    `json:"branch_patterns,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:               model.ID,
		QuizID:           model.QuizID,
		ClassID:          model.ClassID,
		Title:            model.Title,
		QuizTitle:        model.Quiz.Title,
		OpensAt:          model.OpensAt,
		ClosesAt:         model.ClosesAt,
		DurationMin:      model.DurationMin,
		TotalMarks:       model.TotalMarks,
		NegativeFraction: model.NegativeFraction,
		PassPercent:      model.PassPercent,
		LatePolicy:       model.LatePolicy,
		LatePenaltyPct:   model.LatePenaltyPct,
		LateGraceMin:     model.LateGraceMin,
		BranchPatterns:   model.BranchPatterns,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}
	return responses
}
