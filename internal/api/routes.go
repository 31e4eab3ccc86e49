package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger())

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		repos := v1.Group("/repos/:owner/:repo")
		{
			repos.GET("/commits", handler.GetCommits)
			repos.GET("/comments", handler.GetComments)

			repos.GET("/cursor", handler.GetCursor)
			repos.DELETE("/cursor", handler.ResetCursor)

			sync := repos.Group("/sync")
			{
				sync.POST("/commits", handler.SyncCommits)
				sync.POST("/comments", handler.SyncComments)
			}
		}
	}

	return router
}
