package dto

// GradeOverrideRequest carries an admin's manual grade for an attempt.
type GradeOverrideRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback" validate:"omitempty,max=4000"`
}

// AssignmentSummaryResponse aggregates per-assignment results for review.
type AssignmentSummaryResponse struct {
	AssignmentID uint    `json:"assignment_id"`
	Attempted    int64   `json:"attempted"`
	Graded       int64   `json:"graded"`
	Rejected     int64   `json:"rejected"`
	InProgress   int64   `json:"in_progress"`
	AverageScore float64 `json:"average_score"`
	PassRate     float64 `json:"pass_rate"`
	FlaggedCount int64   `json:"flagged_count"`
}
