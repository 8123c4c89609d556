package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

func TestActivityServiceRecordNormalizes(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewActivityService(repository.NewActivityRepository(db), testLogger())

	entityID := uint(7)
	err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		Action:     "  Grade.Override ",
		EntityType: " Attempt ",
		EntityID:   &entityID,
		Metadata:   map[string]any{"score": 75.0},
	})
	require.NoError(t, err)

	var entry models.ActivityLog
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, models.ActivityActionGradeOverride, entry.Action)
	require.Equal(t, models.ActivityEntityAttempt, entry.EntityType)

	err = svc.Record(context.Background(), ActivityEntry{ActorID: 1, EntityType: "attempt"})
	require.Error(t, err, "action is mandatory")
}

func TestActivityServiceListFiltersActorAndAction(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewActivityService(repository.NewActivityRepository(db), testLogger())

	seed := []ActivityEntry{
		{ActorID: 1, Action: "grade.override", EntityType: "attempt"},
		{ActorID: 1, Action: "assignment.delete", EntityType: "assignment"},
		{ActorID: 2, Action: "grade.override", EntityType: "attempt"},
	}
	for _, entry := range seed {
		require.NoError(t, svc.Record(context.Background(), entry))
	}

	mine, err := svc.List(context.Background(), 1, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, entry := range mine {
		require.Equal(t, uint(1), entry.ActorID)
	}

	overrides, err := svc.List(context.Background(), 1, ActivityQuery{Action: "Grade.Override"})
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	require.Equal(t, "grade.override", overrides[0].Action)
}
