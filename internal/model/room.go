package model

import "time"

// RoomStatus is the cached exclusivity state of a room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomLocked      RoomStatus = "locked"
	RoomFull        RoomStatus = "full"
	RoomMaintenance RoomStatus = "maintenance"
)

// RoomType classifies a room by its intended occupancy.
type RoomType string

const (
	RoomTypeSingle RoomType = "single"
	RoomTypeDouble RoomType = "double"
	RoomTypeTriple RoomType = "triple"
	RoomTypeDorm   RoomType = "dorm"
)

// ValidRoomType reports whether t is one of the recognized room types.
func ValidRoomType(t RoomType) bool {
	switch t {
	case RoomTypeSingle, RoomTypeDouble, RoomTypeTriple, RoomTypeDorm:
		return true
	}
	return false
}

// Room represents a hostel room. LockedBy and LockExpiresAt are set only
// while Status is RoomLocked; lock validity is always decided server-side
// against LockExpiresAt, never against a client countdown.
type Room struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	Hostel        string     `gorm:"size:64;not null" json:"hostel"`
	Block         string     `gorm:"size:32;not null;uniqueIndex:idx_rooms_block_number" json:"block"`
	Number        string     `gorm:"size:32;not null;uniqueIndex:idx_rooms_block_number" json:"roomNumber"`
	Floor         int        `gorm:"not null" json:"floor"`
	Capacity      int        `gorm:"not null" json:"capacity"`
	Type          RoomType   `gorm:"size:16;not null" json:"type"`
	IsAC          bool       `gorm:"not null" json:"isAC"`
	Status        RoomStatus `gorm:"size:16;not null;default:available;index" json:"status"`
	LockedBy      *string    `gorm:"size:64" json:"lockedBy,omitempty"`
	LockExpiresAt *time.Time `json:"lockExpiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Associations
	Occupants []Occupant `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"occupants"`
}

// Occupant attaches a student to a room. The unique index on StudentID
// enforces that a student holds at most one room assignment; Position
// preserves the order in which students were allocated.
type Occupant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID    int64     `gorm:"index;not null" json:"-"`
	StudentID string    `gorm:"size:64;not null;uniqueIndex" json:"studentId"`
	Position  int       `gorm:"not null" json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}
