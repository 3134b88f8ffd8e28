package responses

import (
	"github.com/ingredient-matcher/internal/parser"
)

// MatchIngredientResponse is the single match payload.
type MatchIngredientResponse struct {
	parser.ParseResult
	IndexVersion     string `json:"index_version"`      // Candidate index snapshot used
	CacheHit         bool   `json:"cache_hit"`          // Served from the match cache
	ProcessingTimeMs int64  `json:"processing_time_ms"` // Time spent in the service
}

// NormalizeResponse is the normalizer output.
type NormalizeResponse struct {
	Text       string   `json:"text"`
	Tokens     []string `json:"tokens"`
	Normalized string   `json:"normalized"`
}

// BatchMatchResponse acknowledges a batch job.
type BatchMatchResponse struct {
	JobID        string `json:"job_id"`        // Job id (ULID)
	TotalLines   int    `json:"total_lines"`   // Lines accepted
	IndexVersion string `json:"index_version"` // Snapshot the job runs against
	Message      string `json:"message"`
}

// JobStatusResponse reports batch progress.
type JobStatusResponse struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`    // running, done
	Progress  float64 `json:"progress"`  // 0.0 - 1.0
	Processed int     `json:"processed"` // Lines done
	Total     int     `json:"total"`     // Lines submitted
	Message   string  `json:"message"`
}

// SuggestResponse lists nearest candidates for review.
type SuggestResponse struct {
	Query       string              `json:"query"`
	Normalized  string              `json:"normalized"`
	Suggestions []parser.Suggestion `json:"suggestions"`
}

// SeedResponse reports a seed run or dry run.
type SeedResponse struct {
	ValidationPassed bool     `json:"validation_passed"`
	Warnings         []string `json:"warnings,omitempty"`
	Upserted         int      `json:"upserted,omitempty"`
	Rebuilt          bool     `json:"rebuilt"`
	ProcessingTimeMs int64    `json:"processing_time_ms,omitempty"`
	DryRun           bool     `json:"dry_run"`
	Message          string   `json:"message"`
}

// ErrorResponse is the error envelope for every endpoint.
type ErrorResponse struct {
	Error     string      `json:"error"`                // Error code
	Message   string      `json:"message"`              // Human readable message
	Details   interface{} `json:"details,omitempty"`    // Extra context
	Timestamp string      `json:"timestamp"`            // RFC3339
	RequestID string      `json:"request_id,omitempty"` // X-Request-ID of the call
}

// SuccessResponse wraps payloads that have no dedicated type.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse reports service health.
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
