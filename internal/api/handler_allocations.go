package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hostel-portal-backend/internal/auth"
	"hostel-portal-backend/internal/model"
	"hostel-portal-backend/internal/store"
)

type createAllocationRequest struct {
	LockedRoomID      int64             `json:"lockedRoomId" binding:"required"`
	RequestedBlock    string            `json:"requestedBlock"`
	RequestedRoomType model.RoomType    `json:"requestedRoomType"`
	RequestType       model.RequestType `json:"requestType" binding:"required"`
}

// CreateAllocation handles POST /api/allocations. The caller must hold
// a live lock on the target room; a lapsed lock fails with 400 and is
// never silently re-acquired.
func (h *Handler) CreateAllocation(c *gin.Context) {
	var req createAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ident := auth.FromContext(c)

	alloc, err := h.store.CreateAllocation(c.Request.Context(), time.Now().UTC(), ident.StudentID, store.AllocationRequest{
		LockedRoomID:      req.LockedRoomID,
		RequestedBlock:    req.RequestedBlock,
		RequestedRoomType: req.RequestedRoomType,
		RequestType:       req.RequestType,
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, alloc)
}

type decideAllocationRequest struct {
	Status       store.Decision `json:"status" binding:"required"`
	AdminComment string         `json:"adminComment"`
}

// DecideAllocation handles PUT /api/allocations/:id. Only the first
// decision on a pending allocation applies; repeats get 409.
func (h *Handler) DecideAllocation(c *gin.Context) {
	var req decideAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alloc, err := h.store.DecideAllocation(c.Request.Context(), time.Now().UTC(), c.Param("id"), req.Status, req.AdminComment)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	if h.workerPool != nil {
		h.workerPool.Dispatch(alloc.ID)
	}
	c.JSON(http.StatusOK, alloc)
}

// MyAllocations handles GET /api/allocations/my: the student's own
// history, newest first.
func (h *Handler) MyAllocations(c *gin.Context) {
	ident := auth.FromContext(c)

	allocs, err := h.store.AllocationsByStudent(c.Request.Context(), ident.StudentID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocs)
}

// ListAllocations handles GET /api/allocations: the paginated admin
// queue, filterable by status.
func (h *Handler) ListAllocations(c *gin.Context) {
	f := store.AllocationFilter{
		Status: model.AllocationStatus(c.Query("status")),
	}
	if p := c.Query("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		f.Page = page
	}
	if ps := c.Query("pageSize"); ps != "" {
		size, err := strconv.Atoi(ps)
		if err != nil || size < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pageSize"})
			return
		}
		f.PageSize = size
	}

	allocs, total, err := h.store.ListAllocations(c.Request.Context(), f)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": allocs, "total": total})
}
