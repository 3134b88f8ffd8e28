package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/requests"
	"github.com/ingredient-matcher/app/responses"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/source"
)

// AdminController serves maintenance endpoints.
type AdminController struct {
	adminService *services.AdminService
	logger       *zap.Logger
}

func NewAdminController(adminService *services.AdminService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService: adminService,
		logger:       logger,
	}
}

// SeedIngredients upserts canonical ingredients. ?dry_run=true only validates.
func (ac *AdminController) SeedIngredients(c *gin.Context) {
	var req requests.SeedIngredientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	if c.Query("dry_run") == "true" {
		resp := responses.SeedResponse{ValidationPassed: true, DryRun: true, Message: "validation passed"}
		if err := source.Validate(req.Data); err != nil {
			resp.ValidationPassed = false
			resp.Warnings = []string{err.Error()}
			resp.Message = "validation failed"
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	result, err := ac.adminService.Seed(c.Request.Context(), req.Data, req.RebuildIndex)
	if err != nil {
		status, code := serviceError(err)
		if status == http.StatusInternalServerError {
			ac.logger.Error("Seed failed", zap.Error(err))
			respondError(c, status, "SEED_ERROR", err.Error())
			return
		}
		respondError(c, status, code, err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.SeedResponse{
		ValidationPassed: true,
		Upserted:         result.Upserted,
		Rebuilt:          result.Rebuilt,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Message:          "seed completed",
	})
}

// RebuildIndex reloads the canonical table into a new index.
func (ac *AdminController) RebuildIndex(c *gin.Context) {
	report, err := ac.adminService.RebuildIndex(c.Request.Context())
	if err != nil {
		ac.logger.Error("Index rebuild failed", zap.Error(err))
		status, code := serviceError(err)
		if status == http.StatusInternalServerError {
			code = "REBUILD_ERROR"
		}
		respondError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "index rebuilt",
		Data:      report,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// SyncSearch pushes the canonical table to the search index.
func (ac *AdminController) SyncSearch(c *gin.Context) {
	startTime := time.Now()
	n, err := ac.adminService.SyncSearch(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "search index synced",
		Data: map[string]interface{}{
			"documents":          n,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// InvalidateCache drops stale match cache entries, or all with {"all": true}.
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	var req requests.InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	startTime := time.Now()
	if err := ac.adminService.InvalidateCache(c.Request.Context(), req.All); err != nil {
		ac.logger.Error("Cache invalidation failed", zap.Error(err))
		status, code := serviceError(err)
		if status == http.StatusInternalServerError {
			code = "INVALIDATE_ERROR"
		}
		respondError(c, status, code, err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "cache invalidated",
		Data: map[string]interface{}{
			"all":                req.All,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Rematch attaches canonical ids to stored lines that have none.
func (ac *AdminController) Rematch(c *gin.Context) {
	var req requests.RematchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	result, err := ac.adminService.Rematch(c.Request.Context(), req.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "rematch completed",
		Data:      result,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// GetStats returns runtime, index, cache and match statistics.
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
