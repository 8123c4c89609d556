package dto

import (
	"encoding/json"
	"time"

	"github.com/quizdeck/quizdeck-api/internal/grading"
	"github.com/quizdeck/quizdeck-api/internal/models"
)

// AnswerSaveRequest carries a partial or final answer set. Keys are question
// IDs as decimal strings, values the selected option keys.
type AnswerSaveRequest struct {
	Answers map[string][]string `json:"answers" validate:"required"`
}

// TelemetryRequest reports a client-side proctoring event.
type TelemetryRequest struct {
	Event string `json:"event" validate:"required,oneof=blur fullscreen_exit paste heartbeat"`
}

// AttemptResponse is the candidate-facing attempt representation.
type AttemptResponse struct {
	ID           uint                    `json:"id"`
	AssignmentID uint                    `json:"assignment_id"`
	Status       string                  `json:"status"`
	StartedAt    time.Time               `json:"started_at"`
	Deadline     time.Time               `json:"deadline"`
	SubmittedAt  *time.Time              `json:"submitted_at,omitempty"`
	Late         bool                    `json:"late"`
	Score        *float64                `json:"score,omitempty"`
	RawScore     *float64                `json:"raw_score,omitempty"`
	Passed       *bool                   `json:"passed,omitempty"`
	Feedback     string                  `json:"feedback,omitempty"`
	Flagged      bool                    `json:"flagged"`
	Questions    []QuestionResponse      `json:"questions,omitempty"`
	Breakdown    []grading.QuestionScore `json:"breakdown,omitempty"`
}

// NewAttemptResponse converts a model into a DTO. The grading breakdown is
// only attached once the attempt is graded.
func NewAttemptResponse(model models.Attempt) AttemptResponse {
	resp := AttemptResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		Status:       model.Status,
		StartedAt:    model.StartedAt,
		Deadline:     model.Deadline,
		SubmittedAt:  model.SubmittedAt,
		Late:         model.Late,
		Score:        model.Score,
		RawScore:     model.RawScore,
		Passed:       model.Passed,
		Feedback:     model.Feedback,
		Flagged:      model.Flagged,
	}

	if model.IsGraded() && len(model.Breakdown) > 0 {
		_ = json.Unmarshal(model.Breakdown, &resp.Breakdown)
	}

	return resp
}

// ReviewAttemptResponse is the admin-facing attempt view with telemetry.
type ReviewAttemptResponse struct {
	AttemptResponse
	UserID          uint   `json:"user_id"`
	UserName        string `json:"user_name"`
	UserBranch      string `json:"user_branch"`
	BlurCount       int    `json:"blur_count"`
	FullscreenExits int    `json:"fullscreen_exits"`
	PasteCount      int    `json:"paste_count"`
}

// NewReviewAttemptResponse converts a model into the admin review DTO.
func NewReviewAttemptResponse(model models.Attempt) ReviewAttemptResponse {
	return ReviewAttemptResponse{
		AttemptResponse: NewAttemptResponse(model),
		UserID:          model.UserID,
		UserName:        model.User.Name,
		UserBranch:      model.User.Branch,
		BlurCount:       model.BlurCount,
		FullscreenExits: model.FullscreenExits,
		PasteCount:      model.PasteCount,
	}
}

// NewReviewAttemptResponseSlice converts attempts into review DTOs.
func NewReviewAttemptResponseSlice(attempts []models.Attempt) []ReviewAttemptResponse {
	responses := make([]ReviewAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewReviewAttemptResponse(attempt))
	}
	return responses
}
