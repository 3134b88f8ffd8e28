package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupWebRoutes registers the landing and docs pages.
func SetupWebRoutes(router *gin.Engine, version string) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Ingredient Matcher Service",
				"version": version,
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api": "Ingredient Matcher API v1",
				"endpoints": map[string]string{
					"match":       "POST /v1/ingredients/match",
					"normalize":   "POST /v1/ingredients/normalize",
					"batch":       "POST /v1/ingredients/jobs",
					"job_status":  "GET /v1/ingredients/jobs/:jobID/status",
					"job_results": "GET /v1/ingredients/jobs/:jobID/results?format=ndjson&gzip=1",
					"suggest":     "GET /v1/ingredients/suggest?q=&k=",
					"search":      "GET /v1/ingredients/search?q=&limit=",
					"seed":        "POST /v1/admin/seed?dry_run=true",
					"rebuild":     "POST /v1/admin/index/rebuild",
					"search_sync": "POST /v1/admin/search/sync",
					"invalidate":  "POST /v1/admin/cache/invalidate",
					"rematch":     "POST /v1/admin/rematch",
					"stats":       "GET /v1/admin/stats",
					"health":      "GET /v1/health",
				},
			})
		})
	}
}
