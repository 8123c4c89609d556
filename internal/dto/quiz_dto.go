package dto

import (
	"encoding/json"
	"time"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// QuizCreateRequest describes the payload for creating a quiz.
type QuizCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3"`
	Description string `json:"description" validate:"omitempty,max=4000"`
}

// QuizUpdateRequest describes the payload for updating a quiz.
type QuizUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
}

// QuestionOption is a selectable answer option.
type QuestionOption struct {
	Key  string `json:"key" validate:"required,min=1,max=8"`
	Text string `json:"text" validate:"required"`
}

// QuestionCreateRequest describes the payload for adding a question.
type QuestionCreateRequest struct {
	Kind        string           `json:"kind" validate:"required,oneof=single multiple truefalse"`
	Text        string           `json:"text" validate:"required,min=3"`
	Options     []QuestionOption `json:"options" validate:"omitempty,dive"`
	CorrectKeys []string         `json:"correct_keys" validate:"required,min=1,dive,required"`
	Weight      float64          `json:"weight" validate:"omitempty,gt=0"`
}

// QuizResponse is the serialized quiz representation.
type QuizResponse struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	QuestionCount int       `json:"question_count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewQuizResponse converts a model into a DTO.
func NewQuizResponse(model models.Quiz) QuizResponse {
	return QuizResponse{
		ID:            model.ID,
		Title:         model.Title,
		Description:   model.Description,
		QuestionCount: len(model.Questions),
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewQuizResponseSlice converts a slice of models into DTOs.
func NewQuizResponseSlice(quizzes []models.Quiz) []QuizResponse {
	responses := make([]QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		responses = append(responses, NewQuizResponse(quiz))
	}
	return responses
}

// QuestionResponse is the admin-facing question representation, answer key
// included.
type QuestionResponse struct {
	ID          uint             `json:"id"`
	Position    int              `json:"position"`
	Kind        string           `json:"kind"`
	Text        string           `json:"text"`
	Options     []QuestionOption `json:"options"`
	CorrectKeys []string         `json:"correct_keys,omitempty"`
	Weight      float64          `json:"weight"`
	ImageURL    string           `json:"image_url,omitempty"`
}

// NewQuestionResponse converts a model into a DTO. includeKey controls
// whether the answer key is exposed; candidate views must not see it.
func NewQuestionResponse(model models.Question, includeKey bool) QuestionResponse {
	resp := QuestionResponse{
		ID:       model.ID,
		Position: model.Position,
		Kind:     model.Kind,
		Text:     model.Text,
		Weight:   model.Weight,
		ImageURL: model.ImageURL,
	}

	_ = json.Unmarshal(model.Options, &resp.Options)

	if includeKey {
		_ = json.Unmarshal(model.CorrectKeys, &resp.CorrectKeys)
	}

	return resp
}

// NewQuestionResponseSlice converts questions into DTOs.
func NewQuestionResponseSlice(questions []models.Question, includeKey bool) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question, includeKey))
	}
	return responses
}

// QuestionImportReport summarises a bulk question import.
type QuestionImportReport struct {
	TotalRows   int                      `json:"total_rows"`
	SuccessRows int                      `json:"success_rows"`
	FailedRows  int                      `json:"failed_rows"`
	Errors      []QuestionImportRowError `json:"errors"`
}

// QuestionImportRowError describes one rejected import row.
type QuestionImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// AssistantDraftRequest asks the question assistant for draft questions.
type AssistantDraftRequest struct {
	Topic string `json:"topic" validate:"required,min=3"`
	Count int    `json:"count" validate:"omitempty,min=1,max=10"`
}
