// Package routes wires controllers and middleware into a gin engine.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/controllers"
	"github.com/ingredient-matcher/app/middleware"
	"github.com/ingredient-matcher/helpers/utils"
)

// NewRouter builds the engine with middleware and every route group.
func NewRouter(cfg *config.Config, ingredientController *controllers.IngredientController, adminController *controllers.AdminController, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	setupMiddleware(router, cfg, logger)

	SetupWebRoutes(router, cfg.App.Version)
	SetupHealthRoutes(router, ingredientController)
	SetupAPIRoutes(router, ingredientController, adminController)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
	return router
}

func setupMiddleware(router *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	router.Use(requestid.New(requestid.WithGenerator(utils.GenerateUUID)))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:   []string{"Content-Length", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger))
	}
}
