package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/grading"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ErrAttemptNotFound indicates the attempt does not exist or is not owned by
// the caller.
var ErrAttemptNotFound = errors.New("attempt not found")

// ErrNotEligible indicates the candidate fails the assignment's filters.
var ErrNotEligible = errors.New("not eligible for assignment")

// ErrWindowClosed indicates the assignment is outside its open window.
var ErrWindowClosed = errors.New("assignment window closed")

// ErrAttemptFinished indicates the attempt has already been submitted.
var ErrAttemptFinished = errors.New("attempt already finished")

// ErrDeadlinePassed indicates a save or submit arrived too late to accept.
var ErrDeadlinePassed = errors.New("attempt deadline passed")

// Suspicious telemetry events at or above this count flag the attempt.
const flagThreshold = 3

const presenceTTL = 90 * time.Second

// GradedEvent is published after an attempt is graded.
type GradedEvent struct {
	AttemptID    uint      `json:"attempt_id"`
	AssignmentID uint      `json:"assignment_id"`
	UserID       uint      `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	UserName     string    `json:"user_name"`
	Title        string    `json:"title"`
	Score        float64   `json:"score"`
	TotalMarks   float64   `json:"total_marks"`
	Passed       bool      `json:"passed"`
	Late         bool      `json:"late"`
	GradedAt     time.Time `json:"graded_at"`
}

// GradedPublisher delivers graded events to the background consumer.
type GradedPublisher interface {
	PublishGraded(ctx context.Context, event GradedEvent) error
}

// AttemptService exposes the candidate attempt lifecycle.
type AttemptService interface {
	Start(ctx context.Context, userID, assignmentID uint) (dto.AttemptResponse, error)
	Get(ctx context.Context, userID, attemptID uint) (dto.AttemptResponse, error)
	SaveAnswers(ctx context.Context, userID, attemptID uint, payload dto.AnswerSaveRequest) (dto.AttemptResponse, error)
	RecordTelemetry(ctx context.Context, userID, attemptID uint, payload dto.TelemetryRequest) error
	Submit(ctx context.Context, userID, attemptID uint, payload dto.AnswerSaveRequest) (dto.AttemptResponse, error)
}

type attemptService struct {
	repo        repository.AttemptRepository
	assignments repository.AssignmentRepository
	quizzes     repository.QuizRepository
	eligibility AssignmentService
	redis       *redis.Client
	publisher   GradedPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAttemptService builds a new attempt service. Redis and the publisher may
// be nil; presence tracking and event publishing are then skipped.
func NewAttemptService(repo repository.AttemptRepository, assignments repository.AssignmentRepository, quizzes repository.QuizRepository, eligibility AssignmentService, redisClient *redis.Client, publisher GradedPublisher, validate *validator.Validate, logger zerolog.Logger) AttemptService {
	return &attemptService{
		repo:        repo,
		assignments: assignments,
		quizzes:     quizzes,
		eligibility: eligibility,
		redis:       redisClient,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, userID, assignmentID uint) (dto.AttemptResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrAssignmentNotFound
		}
		return dto.AttemptResponse{}, err
	}

	eligible, err := s.eligibility.EligibleFor(ctx, assignment, userID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if !eligible {
		return dto.AttemptResponse{}, ErrNotEligible
	}

	// A prior in-progress attempt is resumed rather than restarted.
	if existing, err := s.repo.GetByAssignmentAndUser(ctx, assignmentID, userID); err == nil {
		if existing.Status != models.AttemptStatusInProgress {
			return dto.AttemptResponse{}, ErrAttemptFinished
		}
		return s.withQuestions(ctx, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AttemptResponse{}, err
	}

	now := s.now()
	if !assignment.WindowOpen(now) {
		return dto.AttemptResponse{}, ErrWindowClosed
	}

	attempt := models.Attempt{
		AssignmentID: assignmentID,
		UserID:       userID,
		Status:       models.AttemptStatusInProgress,
		StartedAt:    now,
		Deadline:     grading.AttemptDeadline(now, assignment.DurationMin, assignment.ClosesAt),
		Answers:      datatypes.JSON([]byte("{}")),
	}

	if err := s.repo.Create(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	s.touchPresence(ctx, attempt)
	s.logger.Info().Uint("attempt_id", attempt.ID).Uint("assignment_id", assignmentID).Msg("attempt started")

	attempt.Assignment = assignment
	return s.withQuestions(ctx, attempt)
}

func (s *attemptService) Get(ctx context.Context, userID, attemptID uint) (dto.AttemptResponse, error) {
	attempt, err := s.ownAttempt(ctx, userID, attemptID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	if attempt.Status == models.AttemptStatusInProgress {
		return s.withQuestions(ctx, attempt)
	}
	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) SaveAnswers(ctx context.Context, userID, attemptID uint, payload dto.AnswerSaveRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	attempt, err := s.ownAttempt(ctx, userID, attemptID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	if attempt.Status != models.AttemptStatusInProgress {
		return dto.AttemptResponse{}, ErrAttemptFinished
	}

	if s.now().After(attempt.Deadline) {
		return dto.AttemptResponse{}, ErrDeadlinePassed
	}

	merged, err := mergeAnswers(attempt.Answers, payload.Answers)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	attempt.Answers = merged

	if err := s.repo.Update(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	s.touchPresence(ctx, attempt)
	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) RecordTelemetry(ctx context.Context, userID, attemptID uint, payload dto.TelemetryRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	attempt, err := s.ownAttempt(ctx, userID, attemptID)
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptStatusInProgress {
		return ErrAttemptFinished
	}

	switch payload.Event {
	case models.TelemetryBlur:
		attempt.BlurCount++
	case models.TelemetryFullscreenExit:
		attempt.FullscreenExits++
	case models.TelemetryPaste:
		attempt.PasteCount++
	case models.TelemetryHeartbeat:
		s.touchPresence(ctx, attempt)
		return nil
	}

	if !attempt.Flagged && attempt.BlurCount+attempt.FullscreenExits+attempt.PasteCount >= flagThreshold {
		attempt.Flagged = true
		s.logger.Warn().Uint("attempt_id", attempt.ID).Msg("attempt flagged by telemetry")
	}

	s.touchPresence(ctx, attempt)
	return s.repo.Update(ctx, &attempt)
}

func (s *attemptService) Submit(ctx context.Context, userID, attemptID uint, payload dto.AnswerSaveRequest) (dto.AttemptResponse, error) {
	tracer := otel.Tracer("github.com/quizdeck/quizdeck-api/internal/service/attempt")
	ctx, span := tracer.Start(ctx, "attempt.submit")
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AttemptResponse{}, err
	}

	attempt, err := s.ownAttempt(ctx, userID, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.AttemptResponse{}, err
	}

	if attempt.Status != models.AttemptStatusInProgress {
		return dto.AttemptResponse{}, ErrAttemptFinished
	}

	assignment := attempt.Assignment
	submittedAt := s.now()

	merged, err := mergeAnswers(attempt.Answers, payload.Answers)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	attempt.Answers = merged
	attempt.SubmittedAt = &submittedAt

	outcome := grading.ClassifySubmission(assignment.LatePolicy, submittedAt, attempt.Deadline, assignment.LateGraceMin, assignment.LatePenaltyPct)
	attempt.Late = outcome.Late

	if !outcome.Accept {
		attempt.Status = models.AttemptStatusRejected
		if err := s.repo.Update(ctx, &attempt); err != nil {
			return dto.AttemptResponse{}, err
		}
		s.clearPresence(ctx, attempt)
		span.SetAttributes(attribute.String("attempt.status", attempt.Status))
		s.logger.Info().Uint("attempt_id", attempt.ID).Msg("late submission rejected")
		return dto.NewAttemptResponse(attempt), nil
	}

	quiz, err := s.quizzes.GetWithQuestions(ctx, assignment.QuizID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_load_failed")
		return dto.AttemptResponse{}, err
	}

	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	result := grading.Grade(questionInputs(quiz.Questions), answers, grading.Rules{
		TotalMarks:       assignment.TotalMarks,
		NegativeFraction: assignment.NegativeFraction,
		PassPercent:      assignment.PassPercent,
	}, outcome.PenaltyPct)

	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	attempt.Status = models.AttemptStatusGraded
	attempt.Score = &result.Score
	attempt.RawScore = &result.RawScore
	attempt.Passed = &result.Passed
	attempt.Breakdown = datatypes.JSON(breakdown)
	attempt.GradedAt = &submittedAt

	if err := s.repo.Update(ctx, &attempt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_update_failed")
		return dto.AttemptResponse{}, err
	}

	history := models.AttemptGradeHistory{
		AttemptID: attempt.ID,
		Score:     result.Score,
		GradedAt:  submittedAt,
	}
	if err := s.repo.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to persist grade history")
	}

	s.clearPresence(ctx, attempt)
	s.publishGraded(ctx, attempt, assignment, result)

	span.SetAttributes(
		attribute.Float64("attempt.score", result.Score),
		attribute.Bool("attempt.late", attempt.Late),
	)
	s.logger.Info().Uint("attempt_id", attempt.ID).Float64("score", result.Score).Bool("late", attempt.Late).Msg("attempt graded")

	return dto.NewAttemptResponse(attempt), nil
}

func (s *attemptService) publishGraded(ctx context.Context, attempt models.Attempt, assignment models.Assignment, result grading.Result) {
	if s.publisher == nil {
		return
	}

	event := GradedEvent{
		AttemptID:    attempt.ID,
		AssignmentID: assignment.ID,
		UserID:       attempt.UserID,
		UserEmail:    attempt.User.Email,
		UserName:     attempt.User.Name,
		Title:        assignment.Title,
		Score:        result.Score,
		TotalMarks:   assignment.TotalMarks,
		Passed:       result.Passed,
		Late:         attempt.Late,
		GradedAt:     s.now(),
	}

	if err := s.publisher.PublishGraded(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to publish graded event")
	}
}

func (s *attemptService) withQuestions(ctx context.Context, attempt models.Attempt) (dto.AttemptResponse, error) {
	quiz, err := s.quizzes.GetWithQuestions(ctx, attempt.Assignment.QuizID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	resp := dto.NewAttemptResponse(attempt)
	resp.Questions = dto.NewQuestionResponseSlice(quiz.Questions, false)
	return resp, nil
}

func (s *attemptService) ownAttempt(ctx context.Context, userID, attemptID uint) (models.Attempt, error) {
	attempt, err := s.repo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, ErrAttemptNotFound
		}
		return models.Attempt{}, err
	}

	if attempt.UserID != userID {
		return models.Attempt{}, ErrAttemptNotFound
	}

	return attempt, nil
}

func (s *attemptService) touchPresence(ctx context.Context, attempt models.Attempt) {
	if s.redis == nil {
		return
	}
	key := presenceKey(attempt.AssignmentID, attempt.UserID)
	if err := s.redis.Set(ctx, key, strconv.FormatUint(uint64(attempt.ID), 10), presenceTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh attempt presence")
	}
}

func (s *attemptService) clearPresence(ctx context.Context, attempt models.Attempt) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, presenceKey(attempt.AssignmentID, attempt.UserID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear attempt presence")
	}
}

func presenceKey(assignmentID, userID uint) string {
	return fmt.Sprintf("attempt:active:%d:%d", assignmentID, userID)
}

func mergeAnswers(current datatypes.JSON, incoming map[string][]string) (datatypes.JSON, error) {
	answers := map[string][]string{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &answers); err != nil {
			return nil, fmt.Errorf("corrupt answer state: %w", err)
		}
	}

	for key, selection := range incoming {
		answers[key] = selection
	}

	merged, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(merged), nil
}

func decodeAnswers(raw datatypes.JSON) (map[uint][]string, error) {
	byKey := map[string][]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &byKey); err != nil {
			return nil, fmt.Errorf("corrupt answer state: %w", err)
		}
	}

	answers := make(map[uint][]string, len(byKey))
	for key, selection := range byKey {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		answers[uint(id)] = selection
	}
	return answers, nil
}

func questionInputs(questions []models.Question) []grading.QuestionInput {
	inputs := make([]grading.QuestionInput, 0, len(questions))
	for _, q := range questions {
		var correct []string
		_ = json.Unmarshal(q.CorrectKeys, &correct)
		inputs = append(inputs, grading.QuestionInput{
			ID:          q.ID,
			Kind:        q.Kind,
			CorrectKeys: correct,
			Weight:      q.Weight,
		})
	}
	return inputs
}
