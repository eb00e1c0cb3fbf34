package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the API on router.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		api.GET("/listings", handler.GetListings)
		api.GET("/listings/:fingerprint", handler.GetListing)
		api.GET("/listings/:fingerprint/notifications", handler.GetListingNotifications)
		api.POST("/listings/search", handler.SearchListings)
		api.POST("/listings/:fingerprint/deactivate", handler.DeactivateListing)
		api.DELETE("/listings/:fingerprint", handler.DeleteListing)
		api.GET("/stats", handler.GetStats)
		api.GET("/sessions", handler.GetSessions)
		api.GET("/filters", handler.GetFilters)
		api.POST("/filters", handler.CreateFilter)
		api.POST("/scan", handler.RunScan)
	}
}
