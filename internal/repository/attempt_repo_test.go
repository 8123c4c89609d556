package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

func seedAttemptFixtures(t *testing.T) (AttemptRepository, models.Assignment, models.User) {
	t.Helper()
	db := setupTestDB(t)

	user := models.User{Name: "Eli", Email: "eli@example.com", PasswordHash: "x", Role: models.RoleCandidate}
	require.NoError(t, db.Create(&user).Error)

	quiz := models.Quiz{Title: "Basics", OwnerID: 1}
	require.NoError(t, db.Create(&quiz).Error)

	class := models.Class{Name: "Batch A", InviteCode: "BATCHA11", OwnerID: 1}
	require.NoError(t, db.Create(&class).Error)

	assignment := models.Assignment{
		QuizID:      quiz.ID,
		ClassID:     class.ID,
		Title:       "Weekly Quiz",
		OpensAt:     time.Now().Add(-time.Hour),
		ClosesAt:    time.Now().Add(time.Hour),
		DurationMin: 30,
		TotalMarks:  100,
	}
	require.NoError(t, db.Create(&assignment).Error)

	return NewAttemptRepository(db), assignment, user
}

func TestAttemptRepositoryOnePerAssignment(t *testing.T) {
	repo, assignment, user := seedAttemptFixtures(t)

	first := models.Attempt{
		AssignmentID: assignment.ID,
		UserID:       user.ID,
		StartedAt:    time.Now(),
		Deadline:     time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), &first))

	duplicate := models.Attempt{
		AssignmentID: assignment.ID,
		UserID:       user.ID,
		StartedAt:    time.Now(),
		Deadline:     time.Now().Add(30 * time.Minute),
	}
	require.Error(t, repo.Create(context.Background(), &duplicate), "unique index rejects a second attempt")

	found, err := repo.GetByAssignmentAndUser(context.Background(), assignment.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
	require.Equal(t, "Weekly Quiz", found.Assignment.Title)
}

func TestAttemptRepositoryListFlaggedAndCounts(t *testing.T) {
	repo, assignment, user := seedAttemptFixtures(t)

	score := 80.0
	graded := models.Attempt{
		AssignmentID: assignment.ID,
		UserID:       user.ID,
		Status:       models.AttemptStatusGraded,
		StartedAt:    time.Now(),
		Deadline:     time.Now().Add(30 * time.Minute),
		Score:        &score,
		Flagged:      true,
		BlurCount:    5,
	}
	require.NoError(t, repo.Create(context.Background(), &graded))

	flagged := true
	attempts, err := repo.List(context.Background(), AttemptFilter{AssignmentID: &assignment.ID, Flagged: &flagged})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, 5, attempts[0].BlurCount)

	counts, err := repo.CountByStatus(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.AttemptStatusGraded])

	history := models.AttemptGradeHistory{AttemptID: graded.ID, Score: 80, GradedAt: time.Now()}
	require.NoError(t, repo.CreateHistory(context.Background(), &history))
}
