package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// ClassFilter describes pagination & search options for class listings.
type ClassFilter struct {
	Search          string
	OwnerID         *uint
	IncludeArchived bool
	Page            int
	PageSize        int
}

// ClassRepository defines persistence operations for classes and rosters.
type ClassRepository interface {
	List(ctx context.Context, filter ClassFilter) ([]models.Class, int64, error)
	GetByID(ctx context.Context, id uint) (models.Class, error)
	GetByInviteCode(ctx context.Context, code string) (models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	AddMember(ctx context.Context, membership *models.ClassMembership) error
	GetMembership(ctx context.Context, classID, userID uint) (models.ClassMembership, error)
	ListMembers(ctx context.Context, classID uint) ([]models.ClassMembership, error)
	ListJoined(ctx context.Context, userID uint) ([]models.Class, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository instantiates the repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) List(ctx context.Context, filter ClassFilter) ([]models.Class, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Class{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}

	if !filter.IncludeArchived {
		query = query.Where("archived = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var classes []models.Class
	if err := query.Order("created_at DESC").Find(&classes).Error; err != nil {
		return nil, 0, err
	}

	return classes, total, nil
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) GetByInviteCode(ctx context.Context, code string) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&class).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) Create(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepository) Update(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Save(class).Error
}

func (r *classRepository) AddMember(ctx context.Context, membership *models.ClassMembership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *classRepository) GetMembership(ctx context.Context, classID, userID uint) (models.ClassMembership, error) {
	var membership models.ClassMembership
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("user_id = ?", userID).
		First(&membership).Error; err != nil {
		return models.ClassMembership{}, err
	}
	return membership, nil
}

func (r *classRepository) ListMembers(ctx context.Context, classID uint) ([]models.ClassMembership, error) {
	var members []models.ClassMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("class_id = ?", classID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *classRepository) ListJoined(ctx context.Context, userID uint) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).
		Joins("JOIN class_memberships ON class_memberships.class_id = classes.id").
		Where("class_memberships.user_id = ?", userID).
		Where("classes.archived = ?", false).
		Order("classes.created_at DESC").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}
