package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hostel-portal-backend/internal/model"
)

// CreateAllocation converts a live lock into a pending allocation. The
// lock must currently belong to the student and be unexpired; a lapsed
// lock is never silently re-acquired, the student has to lock again.
// The lock stays held (TTL untouched) while the request awaits review.
func (s *gormStore) CreateAllocation(ctx context.Context, now time.Time, studentID string, req AllocationRequest) (*model.Allocation, error) {
	if req.RequestType != model.RequestInitial && req.RequestType != model.RequestChange {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown request type %q", req.RequestType)}
	}

	var created *model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reclaimRoomTx(tx, now, req.LockedRoomID); err != nil {
			return err
		}
		room, err := fetchRoom(tx, req.LockedRoomID)
		if err != nil {
			return err
		}
		if room.Status != model.RoomLocked || room.LockedBy == nil || *room.LockedBy != studentID {
			return &ValidationError{Reason: "lock invalid or expired", Room: room}
		}

		var pending int64
		if err := tx.Model(&model.Allocation{}).
			Where("student_id = ? AND status = ?", studentID, model.AllocationPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to count pending allocations for student %s: %w", studentID, err)
		}
		if pending > 0 {
			return &ConflictError{State: "student already has a pending allocation"}
		}

		var assigned int64
		if err := tx.Model(&model.Occupant{}).
			Where("student_id = ?", studentID).
			Count(&assigned).Error; err != nil {
			return fmt.Errorf("failed to check current assignment for student %s: %w", studentID, err)
		}
		if req.RequestType == model.RequestInitial && assigned > 0 {
			return &ValidationError{Reason: "student already has a room; submit a change request", Room: room}
		}
		if req.RequestType == model.RequestChange && assigned == 0 {
			return &ValidationError{Reason: "no existing assignment to change", Room: room}
		}

		requestedBlock := req.RequestedBlock
		if requestedBlock == "" {
			requestedBlock = room.Block
		}
		requestedType := req.RequestedRoomType
		if requestedType == "" {
			requestedType = room.Type
		}

		alloc := model.Allocation{
			ID:                uuid.NewString(),
			StudentID:         studentID,
			Hostel:            room.Hostel,
			Block:             room.Block,
			RoomID:            room.ID,
			RequestedBlock:    requestedBlock,
			RequestedRoomType: requestedType,
			RequestType:       req.RequestType,
			LockedRoomID:      room.ID,
			Status:            model.AllocationPending,
		}
		if err := tx.Create(&alloc).Error; err != nil {
			return fmt.Errorf("failed to create allocation: %w", err)
		}
		created = &alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DecideAllocation applies the first admin verdict on a pending
// allocation; later attempts hit the conditional UPDATE on
// status=pending and fail as conflicts, which guards the double-admin
// race. Approval re-checks lock liveness and capacity inside the same
// transaction before any room state moves.
func (s *gormStore) DecideAllocation(ctx context.Context, now time.Time, id string, decision Decision, comment string) (*model.Allocation, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown decision %q", decision)}
	}

	var decided *model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alloc, err := fetchAllocation(tx, id)
		if err != nil {
			return err
		}
		if alloc.Terminal() {
			return &ConflictError{State: "allocation already decided", Allocation: alloc}
		}

		// First decision wins. The conditional UPDATE serializes racing
		// admins on the row; the loser sees zero rows affected. If the
		// approval checks below fail, the transaction rolls this back
		// and the allocation stays pending.
		res := tx.Model(&model.Allocation{}).
			Where("id = ? AND status = ?", id, model.AllocationPending).
			Updates(map[string]any{
				"status":        model.AllocationStatus(decision),
				"admin_comment": comment,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update allocation %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			latest, ferr := fetchAllocation(tx, id)
			if ferr != nil {
				return ferr
			}
			return &ConflictError{State: "allocation already decided", Allocation: latest}
		}

		if decision == DecisionApprove {
			if err := approveTx(tx, now, alloc); err != nil {
				return err
			}
		} else {
			if err := rejectTx(tx, alloc); err != nil {
				return err
			}
		}

		alloc.Status = model.AllocationStatus(decision)
		alloc.AdminComment = comment
		decided = alloc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// approveTx attaches the student to the room. Fails closed if the
// backing lock lapsed while the allocation sat in the queue, and fails
// with a conflict if a racing change-approval already used the last
// slot. Any error rolls back the whole decision.
func approveTx(tx *gorm.DB, now time.Time, alloc *model.Allocation) error {
	if err := reclaimRoomTx(tx, now, alloc.RoomID); err != nil {
		return err
	}
	room, err := fetchRoom(tx, alloc.RoomID)
	if err != nil {
		return err
	}
	if room.Status != model.RoomLocked || room.LockedBy == nil || *room.LockedBy != alloc.StudentID {
		return &StaleLockError{Allocation: alloc, Room: room}
	}
	if len(room.Occupants) >= room.Capacity {
		return &ConflictError{State: "capacity exhausted", Room: room, Allocation: alloc}
	}

	if alloc.RequestType == model.RequestChange {
		if err := detachCurrentRoom(tx, alloc.StudentID); err != nil {
			return err
		}
	}

	occupant := model.Occupant{
		RoomID:    room.ID,
		StudentID: alloc.StudentID,
		Position:  len(room.Occupants) + 1,
	}
	if err := tx.Create(&occupant).Error; err != nil {
		return fmt.Errorf("failed to attach student %s to room %d: %w", alloc.StudentID, room.ID, err)
	}

	res := tx.Model(&model.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]any{
			"status":          occupancyStatus(len(room.Occupants)+1, room.Capacity),
			"locked_by":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize room %d after approval: %w", room.ID, res.Error)
	}
	return nil
}

// rejectTx releases the hold and leaves occupants untouched. Rejection
// is allowed even when the lock has already lapsed; it only records
// history and clears state.
func rejectTx(tx *gorm.DB, alloc *model.Allocation) error {
	res := tx.Model(&model.Room{}).
		Where("id = ? AND status = ? AND locked_by = ?", alloc.RoomID, model.RoomLocked, alloc.StudentID).
		Updates(map[string]any{
			"status":          model.RoomAvailable,
			"locked_by":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release lock on room %d after rejection: %w", alloc.RoomID, res.Error)
	}
	return nil
}

// detachCurrentRoom removes the student's existing occupancy so an
// approved change supersedes the prior assignment. A previously full
// room reopens.
func detachCurrentRoom(tx *gorm.DB, studentID string) error {
	var prev model.Occupant
	err := tx.Where("student_id = ?", studentID).First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch current assignment for student %s: %w", studentID, err)
	}
	if err := tx.Delete(&model.Occupant{}, prev.ID).Error; err != nil {
		return fmt.Errorf("failed to detach student %s from room %d: %w", studentID, prev.RoomID, err)
	}
	res := tx.Model(&model.Room{}).
		Where("id = ? AND status = ?", prev.RoomID, model.RoomFull).
		Update("status", model.RoomAvailable)
	if res.Error != nil {
		return fmt.Errorf("failed to reopen room %d: %w", prev.RoomID, res.Error)
	}
	return nil
}

// GetAllocation returns a single allocation by id.
func (s *gormStore) GetAllocation(ctx context.Context, id string) (*model.Allocation, error) {
	return fetchAllocation(s.db.WithContext(ctx), id)
}

// AllocationsByStudent returns the student's own history, newest first.
func (s *gormStore) AllocationsByStudent(ctx context.Context, studentID string) ([]model.Allocation, error) {
	var allocs []model.Allocation
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&allocs).Error; err != nil {
		return nil, fmt.Errorf("failed to list allocations for student %s: %w", studentID, err)
	}
	return allocs, nil
}

// ListAllocations is the paginated admin queue. Returns the page and the
// total match count.
func (s *gormStore) ListAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, int64, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	q := s.db.WithContext(ctx).Model(&model.Allocation{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count allocations: %w", err)
	}

	var allocs []model.Allocation
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&allocs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list allocations: %w", err)
	}
	return allocs, total, nil
}

func fetchAllocation(tx *gorm.DB, id string) (*model.Allocation, error) {
	var alloc model.Allocation
	err := tx.First(&alloc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "allocation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allocation %s: %w", id, err)
	}
	return &alloc, nil
}
