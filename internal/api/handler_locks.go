package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hostel-portal-backend/internal/auth"
)

// LockRoom handles POST /api/rooms/:id/lock. Exactly one of N
// concurrent callers wins the room; losers get 409 with the blocking
// state.
func (h *Handler) LockRoom(c *gin.Context) {
	id, err := roomIDParam(c)
	if err != nil {
		return
	}
	ident := auth.FromContext(c)

	room, err := h.store.AcquireLock(c.Request.Context(), time.Now().UTC(), id, ident.StudentID, h.lockTTL)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.JSON(http.StatusOK, room)
}

// UnlockRoom handles DELETE /api/rooms/:id/lock. Voluntary release is
// idempotent; releasing a lock you no longer hold is not an error.
func (h *Handler) UnlockRoom(c *gin.Context) {
	id, err := roomIDParam(c)
	if err != nil {
		return
	}
	ident := auth.FromContext(c)

	if err := h.store.ReleaseLock(c.Request.Context(), id, ident.StudentID); err != nil {
		writeStoreError(c, err)
		return
	}

	h.bustCache()
	c.Status(http.StatusNoContent)
}
