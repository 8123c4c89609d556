package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// AttemptFilter narrows attempt queries for review listings.
type AttemptFilter struct {
	AssignmentID *uint
	UserID       *uint
	Status       *string
	Flagged      *bool
}

// AttemptRepository defines data operations for quiz attempts.
type AttemptRepository interface {
	List(ctx context.Context, filter AttemptFilter) ([]models.Attempt, error)
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
	GetByAssignmentAndUser(ctx context.Context, assignmentID, userID uint) (models.Attempt, error)
	Create(ctx context.Context, attempt *models.Attempt) error
	Update(ctx context.Context, attempt *models.Attempt) error
	CreateHistory(ctx context.Context, history *models.AttemptGradeHistory) error
	CountByStatus(ctx context.Context, assignmentID uint) (map[string]int64, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Attempt{}).
		Preload("Assignment").
		Preload("User")
}

func (r *attemptRepository) List(ctx context.Context, filter AttemptFilter) ([]models.Attempt, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.Flagged != nil {
		query = query.Where("flagged = ?", *filter.Flagged)
	}

	var attempts []models.Attempt
	if err := query.Order("created_at DESC").Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.baseQuery(ctx).First(&attempt, id).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) GetByAssignmentAndUser(ctx context.Context, assignmentID, userID uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("user_id = ?", userID).
		First(&attempt).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *attemptRepository) CreateHistory(ctx context.Context, history *models.AttemptGradeHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

func (r *attemptRepository) CountByStatus(ctx context.Context, assignmentID uint) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("status, COUNT(*) as count").
		Where("assignment_id = ?", assignmentID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
