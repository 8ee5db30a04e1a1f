package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hostel-portal-backend/internal/model"
)

// AcquireLock grants a time-bounded exclusive hold on a room. The grant
// itself is a single conditional UPDATE guarded on status=available, so
// under N simultaneous callers exactly one observes a row change and
// wins; everyone else gets a ConflictError naming the blocking state.
func (s *gormStore) AcquireLock(ctx context.Context, now time.Time, roomID int64, studentID string, ttl time.Duration) (*model.Room, error) {
	var locked *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reclaimRoomTx(tx, now, roomID); err != nil {
			return err
		}

		// One active hold per student across all rooms.
		var held int64
		if err := tx.Model(&model.Room{}).
			Where("locked_by = ? AND status = ? AND lock_expires_at > ?", studentID, model.RoomLocked, now).
			Count(&held).Error; err != nil {
			return fmt.Errorf("failed to count active locks for student %s: %w", studentID, err)
		}
		if held > 0 {
			return &ConflictError{State: "student already holds an active lock"}
		}

		expiresAt := now.Add(ttl)
		res := tx.Model(&model.Room{}).
			Where("id = ? AND status = ?", roomID, model.RoomAvailable).
			Updates(map[string]any{
				"status":          model.RoomLocked,
				"locked_by":       studentID,
				"lock_expires_at": expiresAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to lock room %d: %w", roomID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race, or the room is full/maintenance/gone.
			room, err := fetchRoom(tx, roomID)
			if err != nil {
				return err
			}
			return &ConflictError{State: string(room.Status), Room: room}
		}

		room, err := fetchRoom(tx, roomID)
		if err != nil {
			return err
		}
		locked = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

// ReleaseLock voluntarily gives up a hold. It is idempotent: a lock that
// is already gone or held by someone else is not an error.
func (s *gormStore) ReleaseLock(ctx context.Context, roomID int64, studentID string) error {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ? AND status = ? AND locked_by = ?", roomID, model.RoomLocked, studentID).
		Updates(map[string]any{
			"status":          model.RoomAvailable,
			"locked_by":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release lock on room %d: %w", roomID, res.Error)
	}
	return nil
}

// ReclaimExpiredLocks reverts every lapsed lock to available. It backs
// the periodic sweep, but every lock-sensitive operation also calls the
// per-room variant first, so correctness never depends on the sweep.
func (s *gormStore) ReclaimExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("status = ? AND lock_expires_at <= ?", model.RoomLocked, now).
		Updates(map[string]any{
			"status":          model.RoomAvailable,
			"locked_by":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reclaim expired locks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// reclaimRoom applies lazy expiry to a single room outside a caller
// transaction.
func (s *gormStore) reclaimRoom(ctx context.Context, now time.Time, roomID int64) error {
	return reclaimRoomTx(s.db.WithContext(ctx), now, roomID)
}

func reclaimRoomTx(tx *gorm.DB, now time.Time, roomID int64) error {
	res := tx.Model(&model.Room{}).
		Where("id = ? AND status = ? AND lock_expires_at <= ?", roomID, model.RoomLocked, now).
		Updates(map[string]any{
			"status":          model.RoomAvailable,
			"locked_by":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reclaim expired lock on room %d: %w", roomID, res.Error)
	}
	return nil
}
