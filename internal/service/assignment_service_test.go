package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

type assignmentEnv struct {
	db          *gorm.DB
	assignments AssignmentService
	classes     ClassService
	quizzes     QuizService
}

func newAssignmentEnv(t *testing.T) assignmentEnv {
	t.Helper()
	db := setupServiceDB(t)
	validate := testValidator()
	classRepo := repository.NewClassRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	return assignmentEnv{
		db: db,
		assignments: NewAssignmentService(
			repository.NewAssignmentRepository(db),
			quizRepo,
			classRepo,
			repository.NewUserRepository(db),
			validate,
			testLogger(),
		),
		classes: NewClassService(classRepo, nil, 0, validate, testLogger()),
		quizzes: NewQuizService(quizRepo, validate, nil, testLogger()),
	}
}

func (e assignmentEnv) seedUser(t *testing.T, name, branch, role string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role, Branch: branch}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e assignmentEnv) seedQuizAndClass(t *testing.T, adminID uint) (dto.QuizResponse, dto.ClassResponse) {
	t.Helper()
	quiz, err := e.quizzes.Create(context.Background(), adminID, dto.QuizCreateRequest{Title: "Midterm Pool"})
	require.NoError(t, err)
	class, err := e.classes.Create(context.Background(), adminID, dto.ClassCreateRequest{Name: "Section A"})
	require.NoError(t, err)
	return quiz, class
}

func TestAssignmentServiceCreateDefaultsAndWindow(t *testing.T) {
	env := newAssignmentEnv(t)
	admin := env.seedUser(t, "admin", "", models.RoleAdmin)
	quiz, class := env.seedQuizAndClass(t, admin.ID)

	now := time.Now()
	payload := dto.AssignmentCreateRequest{
		QuizID:      quiz.ID,
		ClassID:     class.ID,
		Title:       "Midterm",
		OpensAt:     now.Add(-time.Hour).Format(time.RFC3339),
		ClosesAt:    now.Add(2 * time.Hour).Format(time.RFC3339),
		DurationMin: 30,
	}

	created, err := env.assignments.Create(context.Background(), admin.ID, payload)
	require.NoError(t, err)
	require.Equal(t, float64(100), created.TotalMarks)
	require.Equal(t, models.LatePolicyReject, created.LatePolicy)
	require.Equal(t, "Midterm Pool", created.QuizTitle)

	bad := payload
	bad.ClosesAt = now.Add(-2 * time.Hour).Format(time.RFC3339)
	_, err = env.assignments.Create(context.Background(), admin.ID, bad)
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = env.assignments.Create(context.Background(), admin.ID+1, payload)
	require.ErrorIs(t, err, ErrNotQuizOwner)
}

func TestAssignmentServiceListEligibleFiltersBranch(t *testing.T) {
	env := newAssignmentEnv(t)
	admin := env.seedUser(t, "admin", "", models.RoleAdmin)
	candidate := env.seedUser(t, "dana", "CSE-2026", models.RoleCandidate)
	quiz, class := env.seedQuizAndClass(t, admin.ID)

	_, err := env.classes.Join(context.Background(), candidate.ID, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.NoError(t, err)

	now := time.Now()
	base := dto.AssignmentCreateRequest{
		QuizID:      quiz.ID,
		ClassID:     class.ID,
		OpensAt:     now.Add(-time.Hour).Format(time.RFC3339),
		ClosesAt:    now.Add(2 * time.Hour).Format(time.RFC3339),
		DurationMin: 30,
	}

	forCSE := base
	forCSE.Title = "CSE only"
	forCSE.BranchPatterns = "CSE-*"
	_, err = env.assignments.Create(context.Background(), admin.ID, forCSE)
	require.NoError(t, err)

	forECE := base
	forECE.Title = "ECE only"
	forECE.BranchPatterns = "ECE-*"
	_, err = env.assignments.Create(context.Background(), admin.ID, forECE)
	require.NoError(t, err)

	forAll := base
	forAll.Title = "Everyone"
	_, err = env.assignments.Create(context.Background(), admin.ID, forAll)
	require.NoError(t, err)

	eligible, err := env.assignments.ListEligible(context.Background(), candidate.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	for _, a := range eligible {
		require.NotEqual(t, "ECE only", a.Title)
		require.Empty(t, a.BranchPatterns, "candidates do not see the filter")
	}
}

func TestAssignmentServiceGetEnforcesOwnership(t *testing.T) {
	env := newAssignmentEnv(t)
	owner := env.seedUser(t, "owner", "", models.RoleAdmin)
	other := env.seedUser(t, "other", "", models.RoleAdmin)
	quiz, class := env.seedQuizAndClass(t, owner.ID)

	now := time.Now()
	created, err := env.assignments.Create(context.Background(), owner.ID, dto.AssignmentCreateRequest{
		QuizID:         quiz.ID,
		ClassID:        class.ID,
		Title:          "Closed Book",
		OpensAt:        now.Add(-time.Hour).Format(time.RFC3339),
		ClosesAt:       now.Add(time.Hour).Format(time.RFC3339),
		DurationMin:    20,
		BranchPatterns: "CSE-*",
	})
	require.NoError(t, err)

	got, err := env.assignments.Get(context.Background(), owner.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "CSE-*", got.BranchPatterns)

	_, err = env.assignments.Get(context.Background(), other.ID, created.ID)
	require.ErrorIs(t, err, ErrNotClassOwner)

	_, err = env.assignments.Get(context.Background(), owner.ID, created.ID+100)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAssignmentServiceEligibleForRequiresMembership(t *testing.T) {
	env := newAssignmentEnv(t)
	admin := env.seedUser(t, "admin", "", models.RoleAdmin)
	member := env.seedUser(t, "member", "CSE-2026", models.RoleCandidate)
	outsider := env.seedUser(t, "outsider", "CSE-2026", models.RoleCandidate)
	quiz, class := env.seedQuizAndClass(t, admin.ID)

	_, err := env.classes.Join(context.Background(), member.ID, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.NoError(t, err)

	now := time.Now()
	created, err := env.assignments.Create(context.Background(), admin.ID, dto.AssignmentCreateRequest{
		QuizID:         quiz.ID,
		ClassID:        class.ID,
		Title:          "Quiz 1",
		OpensAt:        now.Add(-time.Hour).Format(time.RFC3339),
		ClosesAt:       now.Add(time.Hour).Format(time.RFC3339),
		DurationMin:    20,
		BranchPatterns: "CSE-*",
	})
	require.NoError(t, err)

	assignment, err := repository.NewAssignmentRepository(env.db).GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	ok, err := env.assignments.EligibleFor(context.Background(), assignment, member.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.assignments.EligibleFor(context.Background(), assignment, outsider.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
