package domain

import (
	"github.com/allisson/extractvault/internal/errors"
)

// Extraction error definitions.
var (
	// ErrNoExtractableData indicates the upstream extraction produced no usable fields.
	ErrNoExtractableData = errors.Wrap(errors.ErrInvalidInput, "no extractable data")

	// ErrExtractorNotConfigured indicates no upstream extraction provider is configured.
	ErrExtractorNotConfigured = errors.Wrap(errors.ErrUnavailable, "extraction provider not configured")

	// ErrUnknownField indicates a field name outside the known classification table.
	ErrUnknownField = errors.Wrap(errors.ErrInvalidInput, "unknown field")

	// ErrInvalidConfidence indicates a confidence score outside [0,1].
	ErrInvalidConfidence = errors.Wrap(errors.ErrInvalidInput, "confidence must be between 0 and 1")

	// ErrFieldNotSensitive indicates a decrypt request for a field stored in the public view.
	ErrFieldNotSensitive = errors.Wrap(errors.ErrInvalidInput, "field is not encrypted")

	// ErrFieldNotPresent indicates the record holds no envelope for the requested field.
	ErrFieldNotPresent = errors.Wrap(errors.ErrNotFound, "field not present on record")

	// ErrRecordNotFound indicates the extraction record does not exist or was swept.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "extraction record not found")

	// ErrElevationRequired indicates the caller must re-authenticate with a stepped-up factor.
	ErrElevationRequired = errors.Wrap(errors.ErrForbidden, "elevated authentication required")

	// ErrInvalidTransition indicates an illegal review state change.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid review state transition")

	// ErrNotReviewed indicates apply was called before the record was reviewed.
	ErrNotReviewed = errors.Wrap(errors.ErrPreconditionFailed, "extraction record not reviewed")

	// ErrInvalidReviewState indicates a stored review state value is not recognized.
	ErrInvalidReviewState = errors.New("invalid review state")
)
