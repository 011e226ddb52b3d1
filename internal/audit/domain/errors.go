package domain

import (
	apperrors "github.com/allisson/extractvault/internal/errors"
)

var (
	// ErrSignatureInvalid indicates an audit event was modified after it was signed.
	ErrSignatureInvalid = apperrors.Wrap(apperrors.ErrConflict, "audit event signature invalid")

	// ErrInvalidTimeRange indicates a verification window whose end is not after its start.
	ErrInvalidTimeRange = apperrors.Wrap(apperrors.ErrInvalidInput, "end must be after start")
)
