package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/pkg/ai"
)

// ErrAssistantUnavailable indicates no drafting backend is configured.
var ErrAssistantUnavailable = errors.New("assistant unavailable")

// AssistantService proposes draft questions for admin review. Drafts are not
// persisted; the admin adds the ones worth keeping.
type AssistantService interface {
	DraftQuestions(ctx context.Context, payload dto.AssistantDraftRequest) ([]dto.QuestionCreateRequest, error)
}

type assistantService struct {
	drafter   ai.Drafter
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssistantService builds the assistant service. The drafter may be nil
// when no API key is configured.
func NewAssistantService(drafter ai.Drafter, validate *validator.Validate, logger zerolog.Logger) AssistantService {
	return &assistantService{
		drafter:   drafter,
		validator: validate,
		logger:    logger.With().Str("component", "assistant_service").Logger(),
	}
}

func (s *assistantService) DraftQuestions(ctx context.Context, payload dto.AssistantDraftRequest) ([]dto.QuestionCreateRequest, error) {
	if s.drafter == nil {
		return nil, ErrAssistantUnavailable
	}

	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	drafts, err := s.drafter.Draft(ctx, ai.DraftInput{Topic: payload.Topic, Count: payload.Count})
	if err != nil {
		return nil, err
	}

	proposals := make([]dto.QuestionCreateRequest, 0, len(drafts))
	for _, draft := range drafts {
		options := make([]dto.QuestionOption, 0, len(draft.Options))
		for key, text := range draft.Options {
			options = append(options, dto.QuestionOption{Key: strings.ToUpper(key), Text: text})
		}

		proposal := dto.QuestionCreateRequest{
			Kind:        strings.ToLower(strings.TrimSpace(draft.Kind)),
			Text:        strings.TrimSpace(draft.Text),
			Options:     options,
			CorrectKeys: draft.CorrectKeys,
			Weight:      1,
		}

		// Drop drafts that do not survive the same validation applied to
		// manually created questions.
		if err := s.validator.Struct(proposal); err != nil {
			s.logger.Debug().Err(err).Msg("discarding malformed draft question")
			continue
		}
		proposals = append(proposals, proposal)
	}

	return proposals, nil
}
