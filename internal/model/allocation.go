package model

import "time"

// AllocationStatus is the adjudication state of an allocation request.
// Approved and rejected are terminal; a record never leaves a terminal
// state.
type AllocationStatus string

const (
	AllocationPending  AllocationStatus = "pending"
	AllocationApproved AllocationStatus = "approved"
	AllocationRejected AllocationStatus = "rejected"
)

// RequestType distinguishes a first assignment from a room change.
type RequestType string

const (
	RequestInitial RequestType = "initial"
	RequestChange  RequestType = "change"
)

// Allocation is an admin-adjudicated request to assign a student to a
// room. It snapshots the target room's hostel/block at creation time so
// history stays meaningful even if the room is later edited.
type Allocation struct {
	ID                string           `gorm:"primaryKey;size:36" json:"id"`
	StudentID         string           `gorm:"size:64;not null;index" json:"student"`
	Hostel            string           `gorm:"size:64" json:"hostel"`
	Block             string           `gorm:"size:32" json:"block"`
	RoomID            int64            `gorm:"not null;index" json:"room"`
	RequestedBlock    string           `gorm:"size:32" json:"requestedBlock"`
	RequestedRoomType RoomType         `gorm:"size:16" json:"requestedRoomType"`
	RequestType       RequestType      `gorm:"size:16;not null" json:"requestType"`
	LockedRoomID      int64            `gorm:"not null" json:"lockedRoomId"`
	Status            AllocationStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	AdminComment      string           `gorm:"size:512" json:"adminComment"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Terminal reports whether the allocation has been decided.
func (a *Allocation) Terminal() bool {
	return a.Status == AllocationApproved || a.Status == AllocationRejected
}
