package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

type reportEnv struct {
	db         *gorm.DB
	svc        ReportService
	admin      models.User
	assignment models.Assignment
}

func newReportEnv(t *testing.T) *reportEnv {
	t.Helper()
	db := setupServiceDB(t)

	env := &reportEnv{
		db: db,
		svc: NewReportService(
			repository.NewAttemptRepository(db),
			repository.NewAssignmentRepository(db),
			repository.NewClassRepository(db),
			NewActivityService(repository.NewActivityRepository(db), testLogger()),
			testValidator(),
			testLogger(),
		),
	}

	env.admin = models.User{Name: "admin", Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&env.admin).Error)

	class := models.Class{Name: "Section A", InviteCode: "SECA2026", OwnerID: env.admin.ID}
	require.NoError(t, db.Create(&class).Error)
	quiz := models.Quiz{Title: "Midterm", OwnerID: env.admin.ID}
	require.NoError(t, db.Create(&quiz).Error)

	now := time.Now()
	env.assignment = models.Assignment{
		QuizID:      quiz.ID,
		ClassID:     class.ID,
		Title:       "Quiz 1",
		OpensAt:     now.Add(-2 * time.Hour),
		ClosesAt:    now.Add(-time.Hour),
		DurationMin: 30,
		TotalMarks:  100,
		PassPercent: 50,
		LatePolicy:  models.LatePolicyReject,
	}
	require.NoError(t, db.Create(&env.assignment).Error)

	return env
}

func (e *reportEnv) seedAttempt(t *testing.T, email string, status string, score *float64, passed *bool, flagged bool) models.Attempt {
	t.Helper()
	user := models.User{Name: email, Email: email, PasswordHash: "x", Role: models.RoleCandidate, Branch: "CSE-2026"}
	require.NoError(t, e.db.Create(&user).Error)

	now := time.Now()
	attempt := models.Attempt{
		AssignmentID: e.assignment.ID,
		UserID:       user.ID,
		Status:       status,
		StartedAt:    now.Add(-time.Hour),
		Deadline:     now.Add(-30 * time.Minute),
		Score:        score,
		Passed:       passed,
		Flagged:      flagged,
	}
	if status == models.AttemptStatusGraded {
		submitted := now.Add(-40 * time.Minute)
		attempt.SubmittedAt = &submitted
		attempt.GradedAt = &submitted
	}
	require.NoError(t, e.db.Create(&attempt).Error)
	return attempt
}

func ptrFloat(v float64) *float64 { return &v }
func ptrBool(v bool) *bool        { return &v }

func TestReportServiceSummary(t *testing.T) {
	env := newReportEnv(t)
	env.seedAttempt(t, "a@example.com", models.AttemptStatusGraded, ptrFloat(80), ptrBool(true), false)
	env.seedAttempt(t, "b@example.com", models.AttemptStatusGraded, ptrFloat(40), ptrBool(false), true)
	env.seedAttempt(t, "c@example.com", models.AttemptStatusInProgress, nil, nil, false)

	summary, err := env.svc.Summary(context.Background(), env.admin.ID, env.assignment.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.Attempted)
	require.Equal(t, int64(2), summary.Graded)
	require.Equal(t, int64(1), summary.InProgress)
	require.InDelta(t, 60.0, summary.AverageScore, 1e-9)
	require.InDelta(t, 50.0, summary.PassRate, 1e-9)
	require.Equal(t, int64(1), summary.FlaggedCount)

	_, err = env.svc.Summary(context.Background(), env.admin.ID+1, env.assignment.ID)
	require.ErrorIs(t, err, ErrNotClassOwner)
}

func TestReportServiceListAttemptsFilters(t *testing.T) {
	env := newReportEnv(t)
	env.seedAttempt(t, "a@example.com", models.AttemptStatusGraded, ptrFloat(80), ptrBool(true), false)
	env.seedAttempt(t, "b@example.com", models.AttemptStatusGraded, ptrFloat(40), ptrBool(false), true)
	env.seedAttempt(t, "c@example.com", models.AttemptStatusInProgress, nil, nil, false)

	all, err := env.svc.ListAttempts(context.Background(), env.admin.ID, env.assignment.ID, ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	flagged := true
	suspicious, err := env.svc.ListAttempts(context.Background(), env.admin.ID, env.assignment.ID, ReviewFilter{Flagged: &flagged})
	require.NoError(t, err)
	require.Len(t, suspicious, 1)
	require.Equal(t, "b@example.com", suspicious[0].UserName)

	graded, err := env.svc.ListAttempts(context.Background(), env.admin.ID, env.assignment.ID, ReviewFilter{Status: models.AttemptStatusGraded})
	require.NoError(t, err)
	require.Len(t, graded, 2)
}

func TestReportServiceOverrideGrade(t *testing.T) {
	env := newReportEnv(t)
	attempt := env.seedAttempt(t, "a@example.com", models.AttemptStatusGraded, ptrFloat(40), ptrBool(false), false)

	reviewed, err := env.svc.OverrideGrade(context.Background(), env.admin.ID, attempt.ID, dto.GradeOverrideRequest{
		Score:    75,
		Feedback: "partial credit for question 2",
	})
	require.NoError(t, err)
	require.InDelta(t, 75.0, *reviewed.Score, 1e-9)
	require.True(t, *reviewed.Passed, "pass verdict is recomputed")
	require.Equal(t, "partial credit for question 2", reviewed.Feedback)

	var historyCount int64
	require.NoError(t, env.db.Model(&models.AttemptGradeHistory{}).Where("attempt_id = ?", attempt.ID).Count(&historyCount).Error)
	require.Equal(t, int64(1), historyCount)

	var entries []models.ActivityLog
	require.NoError(t, env.db.Where("action = ?", models.ActivityActionGradeOverride).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, env.admin.ID, entries[0].ActorID)
	require.Equal(t, models.ActivityEntityAttempt, entries[0].EntityType)
	require.NotNil(t, entries[0].EntityID)
	require.Equal(t, attempt.ID, *entries[0].EntityID)
	require.InDelta(t, 40.0, entries[0].Metadata["previous_score"], 1e-9)

	// Re-applying the identical override leaves no extra trace.
	_, err = env.svc.OverrideGrade(context.Background(), env.admin.ID, attempt.ID, dto.GradeOverrideRequest{
		Score:    75,
		Feedback: "partial credit for question 2",
	})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.AttemptGradeHistory{}).Where("attempt_id = ?", attempt.ID).Count(&historyCount).Error)
	require.Equal(t, int64(1), historyCount)
	require.NoError(t, env.db.Where("action = ?", models.ActivityActionGradeOverride).Find(&entries).Error)
	require.Len(t, entries, 1)

	_, err = env.svc.OverrideGrade(context.Background(), env.admin.ID, attempt.ID, dto.GradeOverrideRequest{Score: 140})
	require.ErrorIs(t, err, ErrScoreExceedsTotal)
}

func TestReportServiceExportExcel(t *testing.T) {
	env := newReportEnv(t)
	env.seedAttempt(t, "a@example.com", models.AttemptStatusGraded, ptrFloat(80), ptrBool(true), false)
	env.seedAttempt(t, "b@example.com", models.AttemptStatusRejected, nil, nil, true)

	raw, err := env.svc.ExportExcel(context.Background(), env.admin.ID, env.assignment.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per attempt")
	require.Equal(t, "candidate", rows[0][0])
	require.Equal(t, "email", rows[0][1])
}
