package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

func newClassEnv(t *testing.T) (ClassService, *miniredis.Miniredis) {
	t.Helper()
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewClassRepository(db)
	return NewClassService(repo, client, time.Minute, testValidator(), testLogger()), mr
}

func TestClassServiceCreateGeneratesInviteCode(t *testing.T) {
	svc, _ := newClassEnv(t)

	class, err := svc.Create(context.Background(), 1, dto.ClassCreateRequest{Name: "Operating Systems"})
	require.NoError(t, err)
	require.Len(t, class.InviteCode, 8)
	require.Equal(t, strings.ToUpper(class.InviteCode), class.InviteCode)
}

func TestClassServiceJoinCachesInvite(t *testing.T) {
	svc, mr := newClassEnv(t)

	class, err := svc.Create(context.Background(), 1, dto.ClassCreateRequest{Name: "Databases"})
	require.NoError(t, err)

	// Codes are matched case-insensitively.
	joined, err := svc.Join(context.Background(), 42, dto.ClassJoinRequest{InviteCode: strings.ToLower(class.InviteCode)})
	require.NoError(t, err)
	require.Equal(t, class.ID, joined.ID)
	require.Empty(t, joined.InviteCode, "candidates do not see the invite code")

	require.True(t, mr.Exists(inviteCachePrefix+class.InviteCode))

	// Joining twice is a no-op.
	again, err := svc.Join(context.Background(), 42, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.NoError(t, err)
	require.Equal(t, class.ID, again.ID)

	roster, err := svc.Roster(context.Background(), 1, class.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	_, err = svc.Join(context.Background(), 43, dto.ClassJoinRequest{InviteCode: "NOPE0000"})
	require.ErrorIs(t, err, ErrInviteCodeInvalid)
}

func TestClassServiceJoinArchivedClassFails(t *testing.T) {
	svc, _ := newClassEnv(t)

	class, err := svc.Create(context.Background(), 1, dto.ClassCreateRequest{Name: "Retired Batch"})
	require.NoError(t, err)

	archived := true
	_, err = svc.Update(context.Background(), 1, class.ID, dto.ClassUpdateRequest{Archived: &archived})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), 42, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.ErrorIs(t, err, ErrClassArchived)
}

func TestClassServiceRotateInviteEvictsCache(t *testing.T) {
	svc, mr := newClassEnv(t)

	class, err := svc.Create(context.Background(), 1, dto.ClassCreateRequest{Name: "Compilers"})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), 42, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.NoError(t, err)
	require.True(t, mr.Exists(inviteCachePrefix+class.InviteCode))

	rotated, err := svc.RotateInvite(context.Background(), 1, class.ID)
	require.NoError(t, err)
	require.NotEqual(t, class.InviteCode, rotated.InviteCode)
	require.False(t, mr.Exists(inviteCachePrefix+class.InviteCode))

	_, err = svc.Join(context.Background(), 43, dto.ClassJoinRequest{InviteCode: class.InviteCode})
	require.ErrorIs(t, err, ErrInviteCodeInvalid, "old code is dead after rotation")

	_, err = svc.Join(context.Background(), 43, dto.ClassJoinRequest{InviteCode: rotated.InviteCode})
	require.NoError(t, err)
}

func TestClassServiceOwnershipGuard(t *testing.T) {
	svc, _ := newClassEnv(t)

	class, err := svc.Create(context.Background(), 1, dto.ClassCreateRequest{Name: "Networks"})
	require.NoError(t, err)

	name := "Hijacked"
	_, err = svc.Update(context.Background(), 2, class.ID, dto.ClassUpdateRequest{Name: &name})
	require.ErrorIs(t, err, ErrNotClassOwner)

	_, err = svc.Roster(context.Background(), 2, class.ID)
	require.ErrorIs(t, err, ErrNotClassOwner)

	_, err = svc.RotateInvite(context.Background(), 1, 9999)
	require.ErrorIs(t, err, ErrClassNotFound)
}
