package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers) {
	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", h.HealthCheck)

		// Capture runs
		api.POST("/captures/:type", h.StartCapture)
		api.GET("/captures", h.ListCaptures)
		api.GET("/captures/:id", h.GetCapture)
	}
}
