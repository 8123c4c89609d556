package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.ClassMembership{},
		&models.Quiz{},
		&models.Question{},
		&models.Assignment{},
		&models.Attempt{},
		&models.AttemptGradeHistory{},
	))
	return db
}

func TestClassRepositoryInviteCodeLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)

	class := models.Class{Name: "Algorithms 2026", InviteCode: "AB12CD34", OwnerID: 1}
	require.NoError(t, repo.Create(context.Background(), &class))

	found, err := repo.GetByInviteCode(context.Background(), "AB12CD34")
	require.NoError(t, err)
	require.Equal(t, class.ID, found.ID)

	_, err = repo.GetByInviteCode(context.Background(), "ZZZZZZZZ")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClassRepositoryMembershipAndJoinedList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)

	candidate := models.User{Name: "Dana", Email: "dana@example.com", PasswordHash: "x", Role: models.RoleCandidate, Branch: "CSE-2026"}
	require.NoError(t, db.Create(&candidate).Error)

	active := models.Class{Name: "Networks", InviteCode: "NET1CODE", OwnerID: 1}
	archived := models.Class{Name: "Old Batch", InviteCode: "OLD1CODE", OwnerID: 1, Archived: true}
	require.NoError(t, repo.Create(context.Background(), &active))
	require.NoError(t, repo.Create(context.Background(), &archived))

	require.NoError(t, repo.AddMember(context.Background(), &models.ClassMembership{ClassID: active.ID, UserID: candidate.ID}))
	require.NoError(t, repo.AddMember(context.Background(), &models.ClassMembership{ClassID: archived.ID, UserID: candidate.ID}))

	membership, err := repo.GetMembership(context.Background(), active.ID, candidate.ID)
	require.NoError(t, err)
	require.Equal(t, candidate.ID, membership.UserID)

	joined, err := repo.ListJoined(context.Background(), candidate.ID)
	require.NoError(t, err)
	require.Len(t, joined, 1, "archived classes are excluded")
	require.Equal(t, "Networks", joined[0].Name)

	members, err := repo.ListMembers(context.Background(), active.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "Dana", members[0].User.Name)
}

func TestClassRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassRepository(db)

	owner := uint(7)
	require.NoError(t, repo.Create(context.Background(), &models.Class{Name: "Data Structures", InviteCode: "DS11CODE", OwnerID: owner}))
	require.NoError(t, repo.Create(context.Background(), &models.Class{Name: "Compilers", InviteCode: "CP11CODE", OwnerID: 9}))

	classes, total, err := repo.List(context.Background(), ClassFilter{Search: "data", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, classes, 1)

	classes, total, err = repo.List(context.Background(), ClassFilter{OwnerID: &owner, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Data Structures", classes[0].Name)
}
