package store

import (
	"fmt"

	"hostel-portal-backend/internal/model"
)

// ConflictError reports that the room or allocation was in a state that
// blocks the requested transition: another student holds the lock, the
// allocation was already decided, or capacity ran out at approval time.
// It carries the authoritative current state so callers can reconcile
// without a second round trip.
type ConflictError struct {
	State      string
	Room       *model.Room
	Allocation *model.Allocation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.State)
}

// ValidationError is a user-correctable failure: a missing, expired, or
// foreign lock, or malformed input.
type ValidationError struct {
	Reason string
	Room   *model.Room
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StaleLockError marks a pending allocation whose backing lock expired
// while it sat in the admin queue. Approving such an allocation would
// honor a hold that no longer exists, so decision attempts fail fast
// and the student must re-lock and re-request.
type StaleLockError struct {
	Allocation *model.Allocation
	Room       *model.Room
}

func (e *StaleLockError) Error() string {
	return fmt.Sprintf("lock on room %d expired while allocation %s was pending", e.Allocation.LockedRoomID, e.Allocation.ID)
}

// Unwrap exposes the validation nature of a stale lock so callers
// matching on *ValidationError also catch it.
func (e *StaleLockError) Unwrap() error {
	return &ValidationError{Reason: "lock invalid or expired", Room: e.Room}
}

// NotFoundError reports an unknown room or allocation id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
