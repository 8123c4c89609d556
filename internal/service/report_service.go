package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ErrScoreExceedsTotal indicates an override surpasses the assignment total.
var ErrScoreExceedsTotal = errors.New("score exceeds assignment total")

// ReviewFilter narrows the attempts listed for review.
type ReviewFilter struct {
	Status  string
	Flagged *bool
}

// ReportService encapsulates admin review of graded attempts.
type ReportService interface {
	ListAttempts(ctx context.Context, adminID, assignmentID uint, filter ReviewFilter) ([]dto.ReviewAttemptResponse, error)
	GetAttempt(ctx context.Context, adminID, attemptID uint) (dto.ReviewAttemptResponse, error)
	OverrideGrade(ctx context.Context, adminID, attemptID uint, payload dto.GradeOverrideRequest) (dto.ReviewAttemptResponse, error)
	Summary(ctx context.Context, adminID, assignmentID uint) (dto.AssignmentSummaryResponse, error)
	ExportExcel(ctx context.Context, adminID, assignmentID uint) ([]byte, error)
}

type reportService struct {
	attempts    repository.AttemptRepository
	assignments repository.AssignmentRepository
	classes     repository.ClassRepository
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService builds a new report service.
func NewReportService(attempts repository.AttemptRepository, assignments repository.AssignmentRepository, classes repository.ClassRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ReportService {
	return &reportService{
		attempts:    attempts,
		assignments: assignments,
		classes:     classes,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

func (s *reportService) ListAttempts(ctx context.Context, adminID, assignmentID uint, filter ReviewFilter) ([]dto.ReviewAttemptResponse, error) {
	if _, err := s.reviewableAssignment(ctx, adminID, assignmentID); err != nil {
		return nil, err
	}

	repoFilter := repository.AttemptFilter{AssignmentID: &assignmentID, Flagged: filter.Flagged}
	if status := strings.TrimSpace(filter.Status); status != "" {
		repoFilter.Status = &status
	}

	attempts, err := s.attempts.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewReviewAttemptResponseSlice(attempts), nil
}

func (s *reportService) GetAttempt(ctx context.Context, adminID, attemptID uint) (dto.ReviewAttemptResponse, error) {
	attempt, err := s.reviewableAttempt(ctx, adminID, attemptID)
	if err != nil {
		return dto.ReviewAttemptResponse{}, err
	}
	return dto.NewReviewAttemptResponse(attempt), nil
}

func (s *reportService) OverrideGrade(ctx context.Context, adminID, attemptID uint, payload dto.GradeOverrideRequest) (dto.ReviewAttemptResponse, error) {
	tracer := otel.Tracer("github.com/quizdeck/quizdeck-api/internal/service/report")
	ctx, span := tracer.Start(ctx, "grading.override")
	span.SetAttributes(
		attribute.Int64("grading.attempt_id", int64(attemptID)),
		attribute.Int64("grading.actor_id", int64(adminID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReviewAttemptResponse{}, err
	}

	attempt, err := s.reviewableAttempt(ctx, adminID, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.ReviewAttemptResponse{}, err
	}

	total := attempt.Assignment.TotalMarks
	if total <= 0 {
		total = 100
	}
	if payload.Score > total+1e-9 {
		span.SetStatus(codes.Error, "score_exceeds_total")
		return dto.ReviewAttemptResponse{}, ErrScoreExceedsTotal
	}

	feedback := strings.TrimSpace(payload.Feedback)

	// Re-applying the same override is a no-op.
	if attempt.Score != nil && math.Abs(*attempt.Score-payload.Score) < 1e-6 &&
		strings.TrimSpace(attempt.Feedback) == feedback &&
		attempt.OverriddenBy != nil && *attempt.OverriddenBy == adminID {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return dto.NewReviewAttemptResponse(attempt), nil
	}

	var previousScore *float64
	if attempt.Score != nil {
		prev := *attempt.Score
		previousScore = &prev
	}

	score := payload.Score
	passed := true
	if attempt.Assignment.PassPercent > 0 {
		passed = score/total*100 >= attempt.Assignment.PassPercent
	}

	gradedAt := s.now()
	overriddenBy := adminID
	attempt.Score = &score
	attempt.Passed = &passed
	attempt.Feedback = feedback
	attempt.Status = models.AttemptStatusGraded
	attempt.GradedAt = &gradedAt
	attempt.OverriddenBy = &overriddenBy

	if err := s.attempts.Update(ctx, &attempt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_update_failed")
		return dto.ReviewAttemptResponse{}, err
	}

	history := models.AttemptGradeHistory{
		AttemptID: attempt.ID,
		Score:     score,
		Feedback:  feedback,
		GradedBy:  &overriddenBy,
		GradedAt:  gradedAt,
	}
	if err := s.attempts.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to persist grade history")
		span.RecordError(err)
	}

	if s.activity != nil {
		entityID := attempt.ID
		entry := ActivityEntry{
			ActorID:    adminID,
			Action:     models.ActivityActionGradeOverride,
			EntityType: models.ActivityEntityAttempt,
			EntityID:   &entityID,
			Metadata: map[string]any{
				"assignment_id": attempt.AssignmentID,
				"score":         score,
			},
		}
		if previousScore != nil {
			entry.Metadata["previous_score"] = *previousScore
		}
		if err := s.activity.Record(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to record override activity")
			span.RecordError(err)
		}
	}

	span.SetAttributes(attribute.Float64("grading.score", score))
	s.logger.Info().Uint("attempt_id", attempt.ID).Uint("admin_id", adminID).Msg("grade overridden")

	return dto.NewReviewAttemptResponse(attempt), nil
}

func (s *reportService) Summary(ctx context.Context, adminID, assignmentID uint) (dto.AssignmentSummaryResponse, error) {
	if _, err := s.reviewableAssignment(ctx, adminID, assignmentID); err != nil {
		return dto.AssignmentSummaryResponse{}, err
	}

	counts, err := s.attempts.CountByStatus(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentSummaryResponse{}, err
	}

	attempts, err := s.attempts.List(ctx, repository.AttemptFilter{AssignmentID: &assignmentID})
	if err != nil {
		return dto.AssignmentSummaryResponse{}, err
	}

	summary := dto.AssignmentSummaryResponse{
		AssignmentID: assignmentID,
		Graded:       counts[models.AttemptStatusGraded],
		Rejected:     counts[models.AttemptStatusRejected],
		InProgress:   counts[models.AttemptStatusInProgress],
	}
	summary.Attempted = summary.Graded + summary.Rejected + summary.InProgress

	var sum float64
	var passCount int64
	for _, attempt := range attempts {
		if attempt.Flagged {
			summary.FlaggedCount++
		}
		if !attempt.IsGraded() || attempt.Score == nil {
			continue
		}
		sum += *attempt.Score
		if attempt.Passed != nil && *attempt.Passed {
			passCount++
		}
	}

	if summary.Graded > 0 {
		summary.AverageScore = sum / float64(summary.Graded)
		summary.PassRate = float64(passCount) / float64(summary.Graded) * 100
	}

	return summary, nil
}

func (s *reportService) ExportExcel(ctx context.Context, adminID, assignmentID uint) ([]byte, error) {
	assignment, err := s.reviewableAssignment(ctx, adminID, assignmentID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.List(ctx, repository.AttemptFilter{AssignmentID: &assignmentID})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"candidate", "email", "branch", "status", "score", "total", "passed", "late", "flagged", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, attempt := range attempts {
		row := i + 2
		score := ""
		if attempt.Score != nil {
			score = fmt.Sprintf("%.2f", *attempt.Score)
		}
		passed := ""
		if attempt.Passed != nil {
			passed = fmt.Sprintf("%t", *attempt.Passed)
		}
		submitted := ""
		if attempt.SubmittedAt != nil {
			submitted = attempt.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		values := []any{
			attempt.User.Name,
			attempt.User.Email,
			attempt.User.Branch,
			attempt.Status,
			score,
			assignment.TotalMarks,
			passed,
			attempt.Late,
			attempt.Flagged,
			submitted,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "J", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *reportService) reviewableAssignment(ctx context.Context, adminID, assignmentID uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
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

func (s *reportService) reviewableAttempt(ctx context.Context, adminID, attemptID uint) (models.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, ErrAttemptNotFound
		}
		return models.Attempt{}, err
	}

	if _, err := s.reviewableAssignment(ctx, adminID, attempt.AssignmentID); err != nil {
		return models.Attempt{}, err
	}

	return attempt, nil
}
