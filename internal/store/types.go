package store

import "hostel-portal-backend/internal/model"

// Decision is an admin verdict on a pending allocation.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

// BulkCreateRequest describes a numeric range of rooms to generate
// within one block, e.g. prefix "A-" with range 101..120.
type BulkCreateRequest struct {
	Hostel   string
	Block    string
	Floor    int
	Prefix   string
	RangeMin int
	RangeMax int
	Capacity int
	Type     model.RoomType
	IsAC     bool
}

// RoomUpdate carries the admin-editable room fields. Nil pointers mean
// "leave unchanged".
type RoomUpdate struct {
	Hostel   *string
	Floor    *int
	Capacity *int
	Type     *model.RoomType
	IsAC     *bool
}

// RoomFilter narrows ListRooms results.
type RoomFilter struct {
	Block  string
	Status model.RoomStatus
	IsAC   *bool
}

// AllocationRequest is the student-supplied portion of a new allocation.
type AllocationRequest struct {
	LockedRoomID      int64
	RequestedBlock    string
	RequestedRoomType model.RoomType
	RequestType       model.RequestType
}

// AllocationFilter narrows the admin allocation queue. Page is 1-based.
type AllocationFilter struct {
	Status   model.AllocationStatus
	Page     int
	PageSize int
}
