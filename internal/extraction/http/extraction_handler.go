// Package http provides HTTP handlers for document extraction ingest and the review and
// apply workflow. Sensitive values leave the service only through the decrypt endpoint.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	"github.com/allisson/extractvault/internal/elevation"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	"github.com/allisson/extractvault/internal/extraction/http/dto"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
	"github.com/allisson/extractvault/internal/httputil"
	customValidation "github.com/allisson/extractvault/internal/validation"
)

// ExtractionHandler handles HTTP requests for extraction records.
type ExtractionHandler struct {
	extractionUseCase extractionUseCase.ExtractionUseCase
	logger            *slog.Logger
}

// NewExtractionHandler creates a new extraction handler.
func NewExtractionHandler(
	extractionUseCase extractionUseCase.ExtractionUseCase,
	logger *slog.Logger,
) *ExtractionHandler {
	return &ExtractionHandler{
		extractionUseCase: extractionUseCase,
		logger:            logger,
	}
}

// IngestHandler stores an uploaded document extraction on behalf of the authenticated subject.
// POST /v1/applications/:applicationId/extractions
// Returns 201 Created with the public rendering of the record, existing or new.
func (h *ExtractionHandler) IngestHandler(c *gin.Context) {
	applicationID := c.Param("applicationId")
	if err := customValidation.Identifier.Validate(applicationID); err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("applicationId: %w", err), h.logger)
		return
	}

	var req dto.IngestExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	document, err := base64.StdEncoding.DecodeString(req.Document)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 document: %w", err), h.logger)
		return
	}

	// The uploader is the token subject; a body user_id may only restate it.
	auth, ok := h.authContext(c)
	if !ok {
		return
	}
	if req.UserID != "" && req.UserID != auth.ActorID {
		httputil.HandleErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrForbidden, "user_id does not match the authenticated subject"),
			h.logger,
		)
		return
	}

	input := extractionUseCase.IngestInput{
		DocumentID:    req.DocumentID,
		ApplicationID: applicationID,
		UserID:        auth.ActorID,
		Fields:        req.Fields,
		Confidence:    req.Confidence,
		DocumentBytes: document,
		Provenance: extractionDomain.Provenance{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		},
	}

	var record *extractionDomain.ExtractionRecord
	if req.HasFields() {
		record, err = h.extractionUseCase.Ingest(c.Request.Context(), input)
	} else {
		record, err = h.extractionUseCase.ExtractAndIngest(c.Request.Context(), input)
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRecordToResponse(record))
}

// ListHandler lists extraction records of an application.
// GET /v1/applications/:applicationId/extractions?offset=0&limit=50
func (h *ExtractionHandler) ListHandler(c *gin.Context) {
	applicationID := c.Param("applicationId")
	if err := customValidation.Identifier.Validate(applicationID); err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("applicationId: %w", err), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	records, err := h.extractionUseCase.ListByApplication(c.Request.Context(), applicationID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordsToListResponse(records))
}

// GetHandler returns the public rendering of one record.
// GET /v1/extractions/:id
func (h *ExtractionHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	record, err := h.extractionUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToResponse(record))
}

// PublicViewHandler returns only the masked field map of a record.
// GET /v1/extractions/:id/public-view
func (h *ExtractionHandler) PublicViewHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	view, err := h.extractionUseCase.GetPublicView(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_view": view})
}

// DecryptFieldHandler returns one sensitive value in plaintext.
// POST /v1/extractions/:id/fields/:field/decrypt - Requires elevated authentication.
// SECURITY: The plaintext buffer is zeroed after the response is written.
func (h *ExtractionHandler) DecryptFieldHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	field, err := extractionDomain.ParseFieldName(c.Param("field"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	plaintext, err := h.extractionUseCase.DecryptField(c.Request.Context(), id, field, auth)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	c.JSON(http.StatusOK, dto.DecryptFieldResponse{
		Field: string(field),
		Value: string(plaintext),
	})
}

// ReviewHandler marks a record reviewed.
// POST /v1/extractions/:id/review
func (h *ExtractionHandler) ReviewHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	record, err := h.extractionUseCase.MarkReviewed(c.Request.Context(), id, auth)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToResponse(record))
}

// ApplyHandler copies the record's sensitive values into a target application.
// POST /v1/extractions/:id/apply - Requires elevated authentication.
func (h *ExtractionHandler) ApplyHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.ApplyExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	record, err := h.extractionUseCase.ApplyToApplication(
		c.Request.Context(),
		id,
		req.TargetApplicationID,
		auth,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToResponse(record))
}

func (h *ExtractionHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid extraction id: %w", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ExtractionHandler) authContext(c *gin.Context) (extractionDomain.AuthContext, bool) {
	auth, ok := elevation.GetAuthContext(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return extractionDomain.AuthContext{}, false
	}
	return auth, true
}
