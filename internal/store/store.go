package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostel-portal-backend/internal/model"
)

// Store defines the interface for all database operations. Every
// operation that inspects lock state takes the caller's notion of now so
// expiry is decided server-side and tests stay deterministic.
type Store interface {
	DB() *gorm.DB

	CreateRoom(ctx context.Context, room *model.Room) error
	BulkCreateRooms(ctx context.Context, req BulkCreateRequest) ([]model.Room, int, error)
	UpdateRoom(ctx context.Context, id int64, upd RoomUpdate) (*model.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	SetMaintenance(ctx context.Context, id int64, on bool) (*model.Room, error)
	GetRoom(ctx context.Context, now time.Time, id int64) (*model.Room, error)
	ListRooms(ctx context.Context, now time.Time, f RoomFilter) ([]model.Room, error)

	AcquireLock(ctx context.Context, now time.Time, roomID int64, studentID string, ttl time.Duration) (*model.Room, error)
	ReleaseLock(ctx context.Context, roomID int64, studentID string) error
	ReclaimExpiredLocks(ctx context.Context, now time.Time) (int64, error)

	CreateAllocation(ctx context.Context, now time.Time, studentID string, req AllocationRequest) (*model.Allocation, error)
	DecideAllocation(ctx context.Context, now time.Time, id string, decision Decision, comment string) (*model.Allocation, error)
	GetAllocation(ctx context.Context, id string) (*model.Allocation, error)
	AllocationsByStudent(ctx context.Context, studentID string) ([]model.Allocation, error)
	ListAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateRoom persists a single admin-created room.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.Capacity <= 0 {
		return &ValidationError{Reason: "capacity must be a positive integer"}
	}
	if !model.ValidRoomType(room.Type) {
		return &ValidationError{Reason: fmt.Sprintf("unknown room type %q", room.Type)}
	}
	room.Status = model.RoomAvailable
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{State: fmt.Sprintf("room %s already exists in block %s", room.Number, room.Block)}
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// BulkCreateRooms generates rooms for a numeric suffix range within one
// block. Numbers already present in the block are skipped; the whole
// remaining batch is persisted in one transaction so a partial range is
// never left behind.
func (s *gormStore) BulkCreateRooms(ctx context.Context, req BulkCreateRequest) ([]model.Room, int, error) {
	if req.Capacity <= 0 {
		return nil, 0, &ValidationError{Reason: "capacity must be a positive integer"}
	}
	if !model.ValidRoomType(req.Type) {
		return nil, 0, &ValidationError{Reason: fmt.Sprintf("unknown room type %q", req.Type)}
	}
	if req.RangeMin > req.RangeMax {
		return nil, 0, &ValidationError{Reason: "invalid room number range"}
	}

	var existing []model.Room
	if err := s.db.WithContext(ctx).Where("block = ?", req.Block).Find(&existing).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch existing rooms for block %s: %w", req.Block, err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[r.Number] = struct{}{}
	}

	rooms, skipped := expandRoomRange(req, taken)
	if len(rooms) == 0 {
		return []model.Room{}, skipped, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rooms).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to bulk create rooms: %w", err)
	}
	return rooms, skipped, nil
}

// expandRoomRange is the pure part of bulk creation: requested range
// minus the taken set.
func expandRoomRange(req BulkCreateRequest, taken map[string]struct{}) ([]model.Room, int) {
	var rooms []model.Room
	skipped := 0
	for n := req.RangeMin; n <= req.RangeMax; n++ {
		number := req.Prefix + strconv.Itoa(n)
		if _, exists := taken[number]; exists {
			skipped++
			continue
		}
		rooms = append(rooms, model.Room{
			Hostel:   req.Hostel,
			Block:    req.Block,
			Number:   number,
			Floor:    req.Floor,
			Capacity: req.Capacity,
			Type:     req.Type,
			IsAC:     req.IsAC,
			Status:   model.RoomAvailable,
		})
	}
	return rooms, skipped
}

// UpdateRoom edits admin-mutable metadata. Capacity can never be lowered
// below the current occupant count.
func (s *gormStore) UpdateRoom(ctx context.Context, id int64, upd RoomUpdate) (*model.Room, error) {
	var updated *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := fetchRoom(tx, id)
		if err != nil {
			return err
		}
		if upd.Hostel != nil {
			room.Hostel = *upd.Hostel
		}
		if upd.Floor != nil {
			room.Floor = *upd.Floor
		}
		if upd.Type != nil {
			if !model.ValidRoomType(*upd.Type) {
				return &ValidationError{Reason: fmt.Sprintf("unknown room type %q", *upd.Type)}
			}
			room.Type = *upd.Type
		}
		if upd.IsAC != nil {
			room.IsAC = *upd.IsAC
		}
		if upd.Capacity != nil {
			if *upd.Capacity <= 0 {
				return &ValidationError{Reason: "capacity must be a positive integer"}
			}
			if *upd.Capacity < len(room.Occupants) {
				return &ConflictError{State: "capacity below current occupancy", Room: room}
			}
			room.Capacity = *upd.Capacity
			if room.Status == model.RoomFull || room.Status == model.RoomAvailable {
				room.Status = occupancyStatus(len(room.Occupants), room.Capacity)
			}
		}
		if err := tx.Omit(clause.Associations).Save(room).Error; err != nil {
			return fmt.Errorf("failed to update room %d: %w", id, err)
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRoom removes a room. Occupied rooms are never deleted.
func (s *gormStore) DeleteRoom(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := fetchRoom(tx, id)
		if err != nil {
			return err
		}
		if len(room.Occupants) > 0 {
			return &ConflictError{State: "room has occupants", Room: room}
		}
		if err := tx.Delete(&model.Room{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete room %d: %w", id, err)
		}
		return nil
	})
}

// SetMaintenance toggles the administrative maintenance override. Taking
// a room into maintenance drops any live lock; leaving maintenance
// recomputes the occupancy-derived status.
func (s *gormStore) SetMaintenance(ctx context.Context, id int64, on bool) (*model.Room, error) {
	var updated *model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := fetchRoom(tx, id)
		if err != nil {
			return err
		}
		if on {
			room.Status = model.RoomMaintenance
			room.LockedBy = nil
			room.LockExpiresAt = nil
		} else {
			room.Status = occupancyStatus(len(room.Occupants), room.Capacity)
		}
		if err := tx.Omit(clause.Associations).Save(room).Error; err != nil {
			return fmt.Errorf("failed to set maintenance on room %d: %w", id, err)
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetRoom returns a room after reconciling a possibly-expired lock, so a
// stale "locked" never reaches a caller.
func (s *gormStore) GetRoom(ctx context.Context, now time.Time, id int64) (*model.Room, error) {
	if err := s.reclaimRoom(ctx, now, id); err != nil {
		return nil, err
	}
	return fetchRoom(s.db.WithContext(ctx), id)
}

// ListRooms lists rooms matching the filter. Expired locks are reclaimed
// first so list views never show a room as falsely unavailable.
func (s *gormStore) ListRooms(ctx context.Context, now time.Time, f RoomFilter) ([]model.Room, error) {
	if _, err := s.ReclaimExpiredLocks(ctx, now); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("Occupants", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
	if f.Block != "" {
		q = q.Where("block = ?", f.Block)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.IsAC != nil {
		q = q.Where("is_ac = ?", *f.IsAC)
	}

	var rooms []model.Room
	if err := q.Order("block ASC, number ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// fetchRoom loads a room with its ordered occupants, translating
// gorm.ErrRecordNotFound into the domain error.
func fetchRoom(tx *gorm.DB, id int64) (*model.Room, error) {
	var room model.Room
	err := tx.Preload("Occupants", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "room", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room %d: %w", id, err)
	}
	return &room, nil
}

// occupancyStatus derives the non-locked, non-maintenance status from
// the occupant count.
func occupancyStatus(occupants, capacity int) model.RoomStatus {
	if occupants >= capacity {
		return model.RoomFull
	}
	return model.RoomAvailable
}

// isUniqueViolation reports whether err is a unique-constraint failure,
// for both the sqlite and postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
