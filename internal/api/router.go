package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"hostel-portal-backend/config"
	"hostel-portal-backend/internal/auth"
	"hostel-portal-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router around a prepared
// handler. Auth gates: the room list needs any valid token, locking and
// allocation requests need a verified student, and everything mutating
// rooms or deciding allocations needs the admin role.
func NewRouter(cfg *config.Config, handler *Handler, cacheStore *cache.Cache) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	caching := mw.Cache(cacheStore, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("", auth.Middleware(cfg.Auth.JWTSecret))
		{
			authed.GET("/rooms", caching, handler.ListRooms)

			student := authed.Group("", auth.RequireVerified())
			{
				student.POST("/rooms/:id/lock", handler.LockRoom)
				student.DELETE("/rooms/:id/lock", handler.UnlockRoom)
				student.POST("/allocations", handler.CreateAllocation)
			}
			authed.GET("/allocations/my", handler.MyAllocations)
			authed.PUT("/subscriptions", handler.PutSubscription)
			authed.DELETE("/subscriptions", handler.DeleteSubscription)

			admin := authed.Group("", auth.RequireAdmin())
			{
				admin.POST("/rooms", handler.CreateRoom)
				admin.POST("/rooms/bulk", handler.BulkCreateRooms)
				admin.PUT("/rooms/:id", handler.UpdateRoom)
				admin.DELETE("/rooms/:id", handler.DeleteRoom)
				admin.PUT("/rooms/:id/maintenance", handler.SetMaintenance)
				admin.PUT("/allocations/:id", handler.DecideAllocation)
				admin.GET("/allocations", handler.ListAllocations)
			}
		}
	}

	return r
}
