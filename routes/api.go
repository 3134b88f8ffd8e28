package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ingredient-matcher/app/controllers"
)

// SetupAPIRoutes registers the /v1 API.
func SetupAPIRoutes(router *gin.Engine, ingredientController *controllers.IngredientController, adminController *controllers.AdminController) {
	v1 := router.Group("/v1")
	{
		ingredients := v1.Group("/ingredients")
		{
			ingredients.POST("/match", ingredientController.Match)
			ingredients.POST("/normalize", ingredientController.Normalize)
			ingredients.POST("/jobs", ingredientController.SubmitJob)
			ingredients.GET("/jobs/:jobID/status", ingredientController.GetJobStatus)
			ingredients.GET("/jobs/:jobID/results", ingredientController.GetJobResults)
			ingredients.GET("/suggest", ingredientController.Suggest)
			ingredients.GET("/search", ingredientController.Search)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/seed", adminController.SeedIngredients)
			admin.POST("/index/rebuild", adminController.RebuildIndex)
			admin.POST("/search/sync", adminController.SyncSearch)
			admin.POST("/cache/invalidate", adminController.InvalidateCache)
			admin.POST("/rematch", adminController.Rematch)
			admin.GET("/stats", adminController.GetStats)
		}

		v1.GET("/health", ingredientController.HealthCheck)
	}
}

// SetupHealthRoutes registers probe endpoints.
func SetupHealthRoutes(router *gin.Engine, ingredientController *controllers.IngredientController) {
	router.GET("/health", ingredientController.HealthCheck)
	router.GET("/ready", ingredientController.Ready)
	router.GET("/live", ingredientController.HealthCheck)
}
