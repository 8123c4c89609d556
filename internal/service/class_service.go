package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ErrClassNotFound indicates the requested class does not exist.
var ErrClassNotFound = errors.New("class not found")

// ErrInviteCodeInvalid indicates no class matches the invite code.
var ErrInviteCodeInvalid = errors.New("invite code invalid")

// ErrClassArchived indicates the class no longer accepts joins.
var ErrClassArchived = errors.New("class archived")

// ErrNotClassOwner indicates the acting admin does not own the class.
var ErrNotClassOwner = errors.New("not class owner")

const inviteCachePrefix = "class:invite:"

// ClassService exposes class administration and candidate joining.
type ClassService interface {
	Create(ctx context.Context, ownerID uint, payload dto.ClassCreateRequest) (dto.ClassResponse, error)
	Update(ctx context.Context, ownerID, classID uint, payload dto.ClassUpdateRequest) (dto.ClassResponse, error)
	RotateInvite(ctx context.Context, ownerID, classID uint) (dto.ClassResponse, error)
	ListOwned(ctx context.Context, ownerID uint, search string, page, pageSize int) ([]dto.ClassResponse, int64, error)
	Roster(ctx context.Context, ownerID, classID uint) ([]dto.RosterEntryResponse, error)
	Join(ctx context.Context, userID uint, payload dto.ClassJoinRequest) (dto.ClassResponse, error)
	ListJoined(ctx context.Context, userID uint) ([]dto.ClassResponse, error)
}

type classService struct {
	repo      repository.ClassRepository
	redis     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewClassService builds a new class service. The Redis client may be nil;
// invite lookups then fall through to the database.
func NewClassService(repo repository.ClassRepository, redisClient *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ClassService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &classService{
		repo:      repo,
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "class_service").Logger(),
	}
}

func (s *classService) Create(ctx context.Context, ownerID uint, payload dto.ClassCreateRequest) (dto.ClassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ClassResponse{}, err
	}

	class := models.Class{
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		InviteCode:  newInviteCode(),
		OwnerID:     ownerID,
	}

	if err := s.repo.Create(ctx, &class); err != nil {
		return dto.ClassResponse{}, err
	}

	s.logger.Info().Uint("class_id", class.ID).Msg("class created")

	return dto.NewClassResponse(class, true), nil
}

func (s *classService) Update(ctx context.Context, ownerID, classID uint, payload dto.ClassUpdateRequest) (dto.ClassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ClassResponse{}, err
	}

	class, err := s.ownedClass(ctx, ownerID, classID)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	if payload.Name != nil {
		class.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Description != nil {
		class.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Archived != nil {
		class.Archived = *payload.Archived
	}

	if err := s.repo.Update(ctx, &class); err != nil {
		return dto.ClassResponse{}, err
	}

	s.logger.Info().Uint("class_id", class.ID).Msg("class updated")

	return dto.NewClassResponse(class, true), nil
}

func (s *classService) RotateInvite(ctx context.Context, ownerID, classID uint) (dto.ClassResponse, error) {
	class, err := s.ownedClass(ctx, ownerID, classID)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	old := class.InviteCode
	class.InviteCode = newInviteCode()

	if err := s.repo.Update(ctx, &class); err != nil {
		return dto.ClassResponse{}, err
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, inviteCachePrefix+old).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to evict invite cache entry")
		}
	}

	s.logger.Info().Uint("class_id", class.ID).Msg("invite code rotated")

	return dto.NewClassResponse(class, true), nil
}

func (s *classService) ListOwned(ctx context.Context, ownerID uint, search string, page, pageSize int) ([]dto.ClassResponse, int64, error) {
	classes, total, err := s.repo.List(ctx, repository.ClassFilter{
		Search:          search,
		OwnerID:         &ownerID,
		IncludeArchived: true,
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	return dto.NewClassResponseSlice(classes, true), total, nil
}

func (s *classService) Roster(ctx context.Context, ownerID, classID uint) ([]dto.RosterEntryResponse, error) {
	if _, err := s.ownedClass(ctx, ownerID, classID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, classID)
	if err != nil {
		return nil, err
	}

	return dto.NewRosterResponse(members), nil
}

func (s *classService) Join(ctx context.Context, userID uint, payload dto.ClassJoinRequest) (dto.ClassResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ClassResponse{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(payload.InviteCode))

	class, err := s.resolveInvite(ctx, code)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	if class.Archived {
		return dto.ClassResponse{}, ErrClassArchived
	}

	// Joining twice is a no-op.
	if _, err := s.repo.GetMembership(ctx, class.ID, userID); err == nil {
		return dto.NewClassResponse(class, false), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ClassResponse{}, err
	}

	membership := models.ClassMembership{ClassID: class.ID, UserID: userID}
	if err := s.repo.AddMember(ctx, &membership); err != nil {
		return dto.ClassResponse{}, err
	}

	s.logger.Info().Uint("class_id", class.ID).Uint("user_id", userID).Msg("candidate joined class")

	return dto.NewClassResponse(class, false), nil
}

func (s *classService) ListJoined(ctx context.Context, userID uint) ([]dto.ClassResponse, error) {
	classes, err := s.repo.ListJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewClassResponseSlice(classes, false), nil
}

func (s *classService) ownedClass(ctx context.Context, ownerID, classID uint) (models.Class, error) {
	class, err := s.repo.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Class{}, ErrClassNotFound
		}
		return models.Class{}, err
	}

	if class.OwnerID != ownerID {
		return models.Class{}, ErrNotClassOwner
	}

	return class, nil
}

func (s *classService) resolveInvite(ctx context.Context, code string) (models.Class, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, inviteCachePrefix+code).Result(); err == nil {
			if id, err := strconv.ParseUint(cached, 10, 64); err == nil {
				if class, err := s.repo.GetByID(ctx, uint(id)); err == nil && class.InviteCode == code {
					return class, nil
				}
			}
		}
	}

	class, err := s.repo.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Class{}, ErrInviteCodeInvalid
		}
		return models.Class{}, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, inviteCachePrefix+code, strconv.FormatUint(uint64(class.ID), 10), s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache invite code")
		}
	}

	return class, nil
}

func newInviteCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:8]
}
