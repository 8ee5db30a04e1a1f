package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"hostel-portal-backend/internal/notification"
	"hostel-portal-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	workerPool *notification.WorkerPool
	cacheStore *cache.Cache
	lockTTL    time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, pool *notification.WorkerPool, cacheStore *cache.Cache, lockTTL time.Duration) *Handler {
	return &Handler{
		store:      s,
		webpush:    webpushOptions,
		workerPool: pool,
		cacheStore: cacheStore,
		lockTTL:    lockTTL,
	}
}

// bustCache drops cached room/allocation views after a mutation.
func (h *Handler) bustCache() {
	if h.cacheStore != nil {
		h.cacheStore.Flush()
	}
}

// writeStoreError maps the store error taxonomy onto HTTP statuses. The
// payload always carries the authoritative room/allocation state the
// store attached, so the UI can reconcile without another round trip.
func writeStoreError(c *gin.Context, err error) {
	var nf *store.NotFoundError
	var cf *store.ConflictError
	var sl *store.StaleLockError
	var ve *store.ValidationError

	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &cf):
		body := gin.H{"error": cf.Error(), "state": cf.State}
		if cf.Room != nil {
			body["room"] = cf.Room
		}
		if cf.Allocation != nil {
			body["allocation"] = cf.Allocation
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &sl):
		body := gin.H{"error": sl.Error()}
		if sl.Room != nil {
			body["room"] = sl.Room
		}
		if sl.Allocation != nil {
			body["allocation"] = sl.Allocation
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &ve):
		body := gin.H{"error": ve.Reason}
		if ve.Room != nil {
			body["room"] = ve.Room
		}
		c.JSON(http.StatusBadRequest, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
