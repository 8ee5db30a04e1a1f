package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hostel-portal-backend/internal/model"
	"hostel-portal-backend/internal/store"
)

type createRoomRequest struct {
	Hostel   string         `json:"hostel" binding:"required"`
	Block    string         `json:"block" binding:"required"`
	Number   string         `json:"roomNumber" binding:"required"`
	Floor    int            `json:"floor"`
	Capacity int            `json:"capacity" binding:"required"`
	Type     model.RoomType `json:"type" binding:"required"`
	IsAC     bool           `json:"isAC"`
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := model.Room{
		Hostel:   req.Hostel,
		Block:    req.Block,
		Number:   req.Number,
		Floor:    req.Floor,
		Capacity: req.Capacity,
		Type:     req.Type,
		IsAC:     req.IsAC,
	}
	if err := h.store.CreateRoom(c.Request.Context(), &room); err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.JSON(http.StatusCreated, room)
}

type bulkCreateRequest struct {
	Hostel   string         `json:"hostel" binding:"required"`
	Block    string         `json:"block" binding:"required"`
	Floor    int            `json:"floor"`
	Prefix   string         `json:"prefix"`
	RangeMin int            `json:"rangeMin" binding:"required"`
	RangeMax int            `json:"rangeMax" binding:"required"`
	Capacity int            `json:"capacity" binding:"required"`
	Type     model.RoomType `json:"type" binding:"required"`
	IsAC     bool           `json:"isAC"`
}

// BulkCreateRooms handles POST /api/rooms/bulk. Room numbers already
// present in the block are skipped and reported in the response.
func (h *Handler) BulkCreateRooms(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rooms, skipped, err := h.store.BulkCreateRooms(c.Request.Context(), store.BulkCreateRequest{
		Hostel:   req.Hostel,
		Block:    req.Block,
		Floor:    req.Floor,
		Prefix:   req.Prefix,
		RangeMin: req.RangeMin,
		RangeMax: req.RangeMax,
		Capacity: req.Capacity,
		Type:     req.Type,
		IsAC:     req.IsAC,
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.JSON(http.StatusCreated, gin.H{"created": rooms, "skipped": skipped})
}

type updateRoomRequest struct {
	Hostel   *string         `json:"hostel"`
	Floor    *int            `json:"floor"`
	Capacity *int            `json:"capacity"`
	Type     *model.RoomType `json:"type"`
	IsAC     *bool           `json:"isAC"`
}

// UpdateRoom handles PUT /api/rooms/:id.
func (h *Handler) UpdateRoom(c *gin.Context) {
	id, err := roomIDParam(c)
	if err != nil {
		return
	}

	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.UpdateRoom(c.Request.Context(), id, store.RoomUpdate{
		Hostel:   req.Hostel,
		Floor:    req.Floor,
		Capacity: req.Capacity,
		Type:     req.Type,
		IsAC:     req.IsAC,
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.JSON(http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/:id. Occupied rooms are refused.
func (h *Handler) DeleteRoom(c *gin.Context) {
	id, err := roomIDParam(c)
	if err != nil {
		return
	}

	if err := h.store.DeleteRoom(c.Request.Context(), id); err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.Status(http.StatusNoContent)
}

type maintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}

// SetMaintenance handles PUT /api/rooms/:id/maintenance.
func (h *Handler) SetMaintenance(c *gin.Context) {
	id, err := roomIDParam(c)
	if err != nil {
		return
	}

	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.SetMaintenance(c.Request.Context(), id, *req.Maintenance)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.JSON(http.StatusOK, room)
}

// ListRooms handles GET /api/rooms with optional block/status/ac filters.
func (h *Handler) ListRooms(c *gin.Context) {
	f := store.RoomFilter{
		Block:  c.Query("block"),
		Status: model.RoomStatus(c.Query("status")),
	}
	if ac := c.Query("ac"); ac != "" {
		isAC, err := strconv.ParseBool(ac)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ac filter"})
			return
		}
		f.IsAC = &isAC
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), time.Now().UTC(), f)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func roomIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, err
	}
	return id, nil
}
