package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/ingredient-matcher/app/responses"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/source"
)

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, responses.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: requestid.Get(c),
	})
}

// serviceError maps a service error onto a status and error code.
func serviceError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrEmptyBatch),
		errors.Is(err, source.ErrNoIngredients):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, services.ErrTooManyLines):
		return http.StatusBadRequest, "TOO_MANY_LINES"
	case errors.Is(err, services.ErrIndexNotReady):
		return http.StatusServiceUnavailable, "INDEX_NOT_READY"
	case errors.Is(err, services.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND"
	case errors.Is(err, services.ErrJobNotDone):
		return http.StatusConflict, "JOB_NOT_DONE"
	case errors.Is(err, services.ErrSearchDisabled):
		return http.StatusNotImplemented, "SEARCH_DISABLED"
	case errors.Is(err, services.ErrRematchDisabled):
		return http.StatusNotImplemented, "REMATCH_DISABLED"
	case errors.Is(err, source.ErrReadOnly):
		return http.StatusConflict, "SOURCE_READ_ONLY"
	case errors.Is(err, services.ErrTooManyCandidates):
		return http.StatusUnprocessableEntity, "TOO_MANY_CANDIDATES"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondServiceError(c *gin.Context, err error) {
	status, code := serviceError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respondError(c, status, code, err.Error())
}
