package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	ClassID  *uint
	QuizID   *uint
	Sort     string
	Page     int
	PageSize int
}

// AssignmentRepository defines persistence operations for quiz assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	ListForClasses(ctx context.Context, classIDs []uint) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).Preload("Quiz")

	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}

	if filter.QuizID != nil {
		query = query.Where("quiz_id = ?", *filter.QuizID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeAssignmentSort(filter.Sort))

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, 0, err
	}

	return assignments, total, nil
}

func (r *assignmentRepository) ListForClasses(ctx context.Context, classIDs []uint) ([]models.Assignment, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}

	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Quiz").
		Where("class_id IN ?", classIDs).
		Order("closes_at ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Preload("Quiz").First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Assignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalizeAssignmentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "opens_at", "opens_at:asc":
		return "opens_at ASC"
	case "-opens_at", "opens_at:desc":
		return "opens_at DESC"
	case "-closes_at", "closes_at:desc":
		return "closes_at DESC"
	case "title", "title:asc":
		return "title ASC"
	default:
		return "closes_at ASC"
	}
}
