package controllers

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/requests"
	"github.com/ingredient-matcher/app/responses"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/parser"
)

// IngredientController serves matching, normalization, jobs and lookups.
type IngredientController struct {
	ingredientService *services.IngredientService
	indexService      *services.IndexService
	version           string
	logger            *zap.Logger
}

func NewIngredientController(ingredientService *services.IngredientService, indexService *services.IndexService, version string, logger *zap.Logger) *IngredientController {
	return &IngredientController{
		ingredientService: ingredientService,
		indexService:      indexService,
		version:           version,
		logger:            logger,
	}
}

// Match canonicalizes a single ingredient line.
func (ic *IngredientController) Match(c *gin.Context) {
	var req requests.MatchIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	out, err := ic.ingredientService.Match(c.Request.Context(), req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.MatchIngredientResponse{
		ParseResult:      out.ParseResult,
		IndexVersion:     out.IndexVersion,
		CacheHit:         out.CacheHit,
		ProcessingTimeMs: out.ProcessingTime.Milliseconds(),
	})
}

// Normalize returns the normalizer output without matching.
func (ic *IngredientController) Normalize(c *gin.Context) {
	var req requests.NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	norm, err := ic.ingredientService.Normalize(req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NormalizeResponse{
		Text:       req.Text,
		Tokens:     norm.Tokens,
		Normalized: norm.Normalized,
	})
}

// SubmitJob starts a batch match job.
func (ic *IngredientController) SubmitJob(c *gin.Context) {
	var req requests.BatchMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	status, err := ic.ingredientService.SubmitJob(c.Request.Context(), req.Lines)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, responses.BatchMatchResponse{
		JobID:        status.JobID,
		TotalLines:   status.Total,
		IndexVersion: status.IndexVersion,
		Message:      "job accepted",
	})
}

// GetJobStatus reports job progress.
func (ic *IngredientController) GetJobStatus(c *gin.Context) {
	status, err := ic.ingredientService.GetJobStatus(c.Param("jobID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses.JobStatusResponse{
		JobID:     status.JobID,
		Status:    status.Status,
		Progress:  status.Progress,
		Processed: status.Processed,
		Total:     status.Total,
		Message:   status.Message,
	})
}

// GetJobResults returns job results as JSON, or as NDJSON with
// ?format=ndjson (optionally gzip-compressed with &gzip=1).
func (ic *IngredientController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")

	if c.Query("format") == "ndjson" {
		ic.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	results, err := ic.ingredientService.GetJobResults(jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "job results",
		Data:      results,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Suggest lists the nearest candidates for a line, for manual review.
func (ic *IngredientController) Suggest(c *gin.Context) {
	q := c.Query("q")
	k, _ := strconv.Atoi(c.DefaultQuery("k", strconv.Itoa(parser.DefaultSuggestions)))

	normalized, suggestions, err := ic.ingredientService.Suggest(q, k)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuggestResponse{
		Query:       q,
		Normalized:  normalized,
		Suggestions: suggestions,
	})
}

// Search runs an autocomplete query against the search index.
func (ic *IngredientController) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	hits, err := ic.ingredientService.Search(c.Query("q"), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "search results",
		Data:      hits,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthCheck reports liveness plus index state.
func (ic *IngredientController) HealthCheck(c *gin.Context) {
	index := "healthy"
	if !ic.indexService.Ready() {
		index = "building"
	}
	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ic.ingredientService.GetStartTime()).Round(time.Second).String(),
		Version:   ic.version,
		Services: map[string]string{
			"candidate_index": index,
		},
	})
}

// Ready fails until the first index build has finished.
func (ic *IngredientController) Ready(c *gin.Context) {
	if !ic.indexService.Ready() {
		respondError(c, http.StatusServiceUnavailable, "INDEX_NOT_READY", "candidate index is not built yet")
		return
	}
	ic.HealthCheck(c)
}

func (ic *IngredientController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	resultChannel, err := ic.ingredientService.GetJobResultsStream(jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{ResponseWriter: c.Writer, gzWriter: gzWriter}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for result := range resultChannel {
		if err := encoder.Encode(result); err != nil {
			ic.logger.Error("Cannot encode NDJSON result", zap.Error(err), zap.String("job_id", jobID))
			// drain so the producer goroutine exits
			for range resultChannel {
			}
			return
		}
		writer.Flush()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.gzWriter.Write([]byte(s))
}

func (w *gzipResponseWriter) Flush() {
	w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}
