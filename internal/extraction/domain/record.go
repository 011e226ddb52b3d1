package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
)

// DefaultRetentionWindow is how long an unreviewed record is kept.
const DefaultRetentionWindow = 30 * 24 * time.Hour

// Provenance captures who uploaded the source document. Used for audit only.
type Provenance struct {
	IP        string
	UserAgent string
}

// ExtractionRecord is one successful extraction of a document.
//
// Sensitive values live only in EncryptedFields. PublicView holds free text verbatim
// and, for sensitive fields, the mask derived before encryption.
type ExtractionRecord struct {
	ID              uuid.UUID
	DocumentID      string
	ApplicationID   string
	UserID          string
	PublicView      map[FieldName]string
	EncryptedFields map[FieldName]cryptoDomain.Envelope
	ContentHash     string
	Confidence      decimal.Decimal
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ReviewState     ReviewState
	ReviewedAt      *time.Time
	ReviewedBy      *string
	AppliedAt       *time.Time
	AppliedBy       *string
	AppliedTo       *string
	Provenance      Provenance
}

// IsExpired reports whether the retention window has elapsed at now.
func (r *ExtractionRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsSweepable reports whether the retention sweeper may delete the record.
func (r *ExtractionRecord) IsSweepable(now time.Time) bool {
	return r.ReviewState == StateExtracted && r.IsExpired(now)
}

// MarkReviewed moves the record to REVIEWED.
func (r *ExtractionRecord) MarkReviewed(actorID string, now time.Time) error {
	next, err := r.ReviewState.Transition(StateReviewed)
	if err != nil {
		return err
	}
	r.ReviewState = next
	r.ReviewedAt = &now
	r.ReviewedBy = &actorID
	return nil
}

// MarkApplied moves the record to APPLIED.
func (r *ExtractionRecord) MarkApplied(actorID, applicationID string, now time.Time) error {
	next, err := r.ReviewState.Transition(StateApplied)
	if err != nil {
		return err
	}
	r.ReviewState = next
	r.AppliedAt = &now
	r.AppliedBy = &actorID
	r.AppliedTo = &applicationID
	return nil
}

// FieldAAD binds an envelope to its record and field. The record id is a fixed 16 bytes,
// so the concatenation is unambiguous.
func FieldAAD(recordID uuid.UUID, name FieldName) []byte {
	aad := make([]byte, 0, len(recordID)+len(name))
	aad = append(aad, recordID[:]...)
	return append(aad, name...)
}
