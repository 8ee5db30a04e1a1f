package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel-portal-backend/internal/model"
)

func TestAcquireLock_SetsHold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	locked, err := s.AcquireLock(ctx, now, room.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, model.RoomLocked, locked.Status)
	require.NotNil(t, locked.LockedBy)
	assert.Equal(t, "S1", *locked.LockedBy)
	require.NotNil(t, locked.LockExpiresAt)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), locked.LockExpiresAt.Unix())
}

func TestAcquireLock_SecondStudentConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	_, err := s.AcquireLock(ctx, now, room.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	_, err = s.AcquireLock(ctx, now.Add(time.Minute), room.ID, "S2", 10*time.Minute)
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, string(model.RoomLocked), cf.State)
	require.NotNil(t, cf.Room)
	assert.Equal(t, "S1", *cf.Room.LockedBy)
}

func TestAcquireLock_UnknownRoom(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AcquireLock(context.Background(), time.Now().UTC(), 999, "S1", 10*time.Minute)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestAcquireLock_OneActiveLockPerStudent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	first := seedRoom(t, s, "A", "101", 2)
	second := seedRoom(t, s, "A", "102", 2)

	_, err := s.AcquireLock(ctx, now, first.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	_, err = s.AcquireLock(ctx, now, second.ID, "S1", 10*time.Minute)
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "student already holds an active lock", cf.State)

	// Once the first hold expires the student may lock again.
	later := now.Add(11 * time.Minute)
	_, err = s.AcquireLock(ctx, later, second.ID, "S1", 10*time.Minute)
	require.NoError(t, err)
}

// TestAcquireLock_MutualExclusion races N students for one room: exactly
// one may win, everyone else must see a conflict.
func TestAcquireLock_MutualExclusion(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			student := string(rune('A' + i))
			_, errs[i] = s.AcquireLock(context.Background(), now, room.ID, "S-"+student, 10*time.Minute)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var cf *ConflictError
		require.ErrorAs(t, err, &cf)
	}
	assert.Equal(t, 1, winners)
}

func TestReleaseLock_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	_, err := s.AcquireLock(ctx, now, room.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	// Foreign release is a no-op, not an error.
	require.NoError(t, s.ReleaseLock(ctx, room.ID, "S2"))
	got, err := s.GetRoom(ctx, now, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomLocked, got.Status)

	require.NoError(t, s.ReleaseLock(ctx, room.ID, "S1"))
	got, err = s.GetRoom(ctx, now, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, got.Status)
	assert.Nil(t, got.LockedBy)

	// Releasing again after the lock is gone still succeeds.
	require.NoError(t, s.ReleaseLock(ctx, room.ID, "S1"))
}

// TestAcquireLock_ExpiredHoldReclaimedLazily covers the spec scenario
// where S1 lets the TTL lapse and S2's attempt reclaims the room without
// any sweep running.
func TestAcquireLock_ExpiredHoldReclaimedLazily(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	_, err := s.AcquireLock(ctx, t0, room.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	// Within the TTL the room is still S1's.
	_, err = s.AcquireLock(ctx, t0.Add(9*time.Minute), room.ID, "S2", 10*time.Minute)
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)

	// At exactly t0+TTL the hold is authoritatively dead.
	locked, err := s.AcquireLock(ctx, t0.Add(10*time.Minute), room.ID, "S2", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "S2", *locked.LockedBy)
}

func TestGetRoom_ReconcilesExpiredLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	room := seedRoom(t, s, "A", "101", 2)

	_, err := s.AcquireLock(ctx, t0, room.ID, "S1", 10*time.Minute)
	require.NoError(t, err)

	got, err := s.GetRoom(ctx, t0.Add(11*time.Minute), room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, got.Status)
	assert.Nil(t, got.LockedBy)
	assert.Nil(t, got.LockExpiresAt)
}

func TestReclaimExpiredLocks_SweepsOnlyLapsedHolds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	lapsed := seedRoom(t, s, "A", "101", 2)
	live := seedRoom(t, s, "A", "102", 2)

	_, err := s.AcquireLock(ctx, t0, lapsed.ID, "S1", 5*time.Minute)
	require.NoError(t, err)
	_, err = s.AcquireLock(ctx, t0, live.ID, "S2", 30*time.Minute)
	require.NoError(t, err)

	reclaimed, err := s.ReclaimExpiredLocks(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	rooms, err := s.ListRooms(ctx, t0.Add(10*time.Minute), RoomFilter{Block: "A"})
	require.NoError(t, err)
	statuses := map[string]model.RoomStatus{}
	for _, r := range rooms {
		statuses[r.Number] = r.Status
	}
	assert.Equal(t, model.RoomAvailable, statuses["101"])
	assert.Equal(t, model.RoomLocked, statuses["102"])
}
