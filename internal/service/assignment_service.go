package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/grading"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ErrAssignmentNotFound indicates the requested assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrInvalidWindow indicates the open/close window is inconsistent.
var ErrInvalidWindow = errors.New("invalid assignment window")

// AssignmentService exposes quiz-assignment use cases.
type AssignmentService interface {
	Create(ctx context.Context, adminID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, adminID, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, adminID, id uint) error
	Get(ctx context.Context, adminID, id uint) (dto.AssignmentResponse, error)
	ListForClass(ctx context.Context, adminID, classID uint) ([]dto.AssignmentResponse, error)
	ListEligible(ctx context.Context, userID uint) ([]dto.AssignmentResponse, error)
	EligibleFor(ctx context.Context, assignment models.Assignment, userID uint) (bool, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	quizzes   repository.QuizRepository
	classes   repository.ClassRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, quizzes repository.QuizRepository, classes repository.ClassRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		quizzes:   quizzes,
		classes:   classes,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, adminID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	quiz, err := s.quizzes.GetByID(ctx, payload.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrQuizNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if quiz.OwnerID != adminID {
		return dto.AssignmentResponse{}, ErrNotQuizOwner
	}

	class, err := s.classes.GetByID(ctx, payload.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrClassNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if class.OwnerID != adminID {
		return dto.AssignmentResponse{}, ErrNotClassOwner
	}

	opensAt, err := time.Parse(time.RFC3339, payload.OpensAt)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("invalid opens_at: %w", err)
	}
	closesAt, err := time.Parse(time.RFC3339, payload.ClosesAt)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("invalid closes_at: %w", err)
	}

	if !closesAt.After(opensAt) || !closesAt.After(s.now()) {
		return dto.AssignmentResponse{}, ErrInvalidWindow
	}

	totalMarks := payload.TotalMarks
	if totalMarks <= 0 {
		totalMarks = 100
	}

	latePolicy := payload.LatePolicy
	if latePolicy == "" {
		latePolicy = models.LatePolicyReject
	}

	assignment := models.Assignment{
		QuizID:           payload.QuizID,
		ClassID:          payload.ClassID,
		Title:            payload.Title,
		OpensAt:          opensAt,
		ClosesAt:         closesAt,
		DurationMin:      payload.DurationMin,
		TotalMarks:       totalMarks,
		NegativeFraction: payload.NegativeFraction,
		PassPercent:      payload.PassPercent,
		LatePolicy:       latePolicy,
		LatePenaltyPct:   payload.LatePenaltyPct,
		LateGraceMin:     payload.LateGraceMin,
		BranchPatterns:   payload.BranchPatterns,
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.Quiz = quiz
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("class_id", class.ID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, adminID, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.ownedAssignment(ctx, adminID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		assignment.Title = *payload.Title
	}
	if payload.OpensAt != nil {
		opensAt, err := time.Parse(time.RFC3339, *payload.OpensAt)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid opens_at: %w", err)
		}
		assignment.OpensAt = opensAt
	}
	if payload.ClosesAt != nil {
		closesAt, err := time.Parse(time.RFC3339, *payload.ClosesAt)
		if err != nil {
			return dto.AssignmentResponse{}, fmt.Errorf("invalid closes_at: %w", err)
		}
		assignment.ClosesAt = closesAt
	}
	if payload.DurationMin != nil {
		assignment.DurationMin = *payload.DurationMin
	}
	if payload.PassPercent != nil {
		assignment.PassPercent = *payload.PassPercent
	}
	if payload.LatePolicy != nil {
		assignment.LatePolicy = *payload.LatePolicy
	}
	if payload.LatePenaltyPct != nil {
		assignment.LatePenaltyPct = *payload.LatePenaltyPct
	}
	if payload.LateGraceMin != nil {
		assignment.LateGraceMin = *payload.LateGraceMin
	}
	if payload.BranchPatterns != nil {
		assignment.BranchPatterns = *payload.BranchPatterns
	}

	if !assignment.ClosesAt.After(assignment.OpensAt) {
		return dto.AssignmentResponse{}, ErrInvalidWindow
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, adminID, id uint) error {
	if _, err := s.ownedAssignment(ctx, adminID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	return nil
}

func (s *assignmentService) Get(ctx context.Context, adminID, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.ownedAssignment(ctx, adminID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) ListForClass(ctx context.Context, adminID, classID uint) ([]dto.AssignmentResponse, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if class.OwnerID != adminID {
		return nil, ErrNotClassOwner
	}

	assignments, _, err := s.repo.List(ctx, repository.AssignmentFilter{ClassID: &classID})
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

// ListEligible returns assignments across the candidate's joined classes,
// filtered by the branch eligibility patterns.
func (s *assignmentService) ListEligible(ctx context.Context, userID uint) ([]dto.AssignmentResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	classes, err := s.classes.ListJoined(ctx, userID)
	if err != nil {
		return nil, err
	}

	classIDs := make([]uint, 0, len(classes))
	for _, class := range classes {
		classIDs = append(classIDs, class.ID)
	}

	assignments, err := s.repo.ListForClasses(ctx, classIDs)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		if grading.BranchEligible(assignment.BranchPatterns, user.Branch) {
			eligible = append(eligible, assignment)
		}
	}

	responses := dto.NewAssignmentResponseSlice(eligible)
	for i := range responses {
		// Candidates never see the filter definition.
		responses[i].BranchPatterns = ""
	}
	return responses, nil
}

// EligibleFor checks class membership and branch pattern for one candidate.
func (s *assignmentService) EligibleFor(ctx context.Context, assignment models.Assignment, userID uint) (bool, error) {
	if _, err := s.classes.GetMembership(ctx, assignment.ClassID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	return grading.BranchEligible(assignment.BranchPatterns, user.Branch), nil
}

func (s *assignmentService) ownedAssignment(ctx context.Context, adminID, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	class, err := s.classes.GetByID(ctx, assignment.ClassID)
	if err != nil {
		return models.Assignment{}, err
	}
	if class.OwnerID != adminID {
		return models.Assignment{}, ErrNotClassOwner
	}

	return assignment, nil
}
