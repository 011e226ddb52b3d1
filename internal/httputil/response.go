// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/extractvault/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMapping struct {
	status int
	// message replaces err.Error() in the body; empty echoes the error.
	message string
}

var errorMappings = map[apperrors.Kind]errorMapping{
	apperrors.KindNotFound:           {http.StatusNotFound, "The requested resource was not found"},
	apperrors.KindPreconditionFailed: {http.StatusConflict, ""},
	apperrors.KindConflict:           {http.StatusConflict, ""},
	apperrors.KindInvalidInput:       {http.StatusUnprocessableEntity, ""},
	apperrors.KindUnauthorized:       {http.StatusUnauthorized, "Authentication is required"},
	apperrors.KindForbidden:          {http.StatusForbidden, ""},
	apperrors.KindUnavailable:        {http.StatusServiceUnavailable, "A backing service is temporarily unavailable"},
	apperrors.KindInternal:           {http.StatusInternalServerError, "An internal error occurred"},
}

// HandleErrorGin maps the error category to an HTTP status and writes a JSON response.
// Internal errors are logged in full but never echoed to the client.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	kind := apperrors.KindOf(err)
	mapping := errorMappings[kind]
	message := mapping.message
	if message == "" {
		message = err.Error()
	}

	if logger != nil {
		level := slog.LevelWarn
		if mapping.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", mapping.status),
			slog.String("error_code", string(kind)),
			slog.Any("error", err),
		)
	}

	c.JSON(mapping.status, ErrorResponse{Error: string(kind), Message: message})
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}
