package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ActivityEntry captures the details of one auditable admin action.
type ActivityEntry struct {
	ActorID    uint
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]any
}

// ActivityQuery narrows the entries returned by List.
type ActivityQuery struct {
	Action string
	Limit  int
}

// ActivityRecorder persists audit trail entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService records and lists the admin audit trail.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, adminID uint, query ActivityQuery) ([]dto.ActivityResponse, error)
}

type activityService struct {
	repo   repository.ActivityRepository
	logger zerolog.Logger
}

// NewActivityService builds a new activity service.
func NewActivityService(repo repository.ActivityRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	if action == "" {
		return fmt.Errorf("activity action is required")
	}
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if entityType == "" {
		return fmt.Errorf("activity entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataMap(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist activity entry")
		return err
	}

	return nil
}

// List returns the acting admin's own audit entries, newest first.
func (s *activityService) List(ctx context.Context, adminID uint, query ActivityQuery) ([]dto.ActivityResponse, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := s.repo.List(ctx, repository.ActivityFilter{
		ActorID: &adminID,
		Action:  strings.ToLower(strings.TrimSpace(query.Action)),
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewActivityResponseSlice(entries), nil
}

func metadataMap(metadata map[string]any) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}
	out := datatypes.JSONMap{}
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
