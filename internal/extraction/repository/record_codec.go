// Package repository implements extraction record persistence for PostgreSQL and MySQL.
//
// Records are stored in the extractions table with the public view and the encrypted
// envelopes as JSON documents. Deduplication keys live in extraction_dedup, whose row lock
// serializes concurrent ingests of the same content.
package repository

import (
	"encoding/json"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

const recordColumns = `id, document_id, application_id, user_id, public_view, encrypted_fields,
	content_hash, confidence, created_at, expires_at, review_state, reviewed_at, reviewed_by,
	applied_at, applied_by, applied_to, provenance_ip, provenance_user_agent`

type rowScanner interface {
	Scan(dest ...any) error
}

// encodedPayload is the JSON form of the two field maps.
type encodedPayload struct {
	publicView      string
	encryptedFields string
}

func encodePayload(record *extractionDomain.ExtractionRecord) (encodedPayload, error) {
	publicView, err := json.Marshal(record.PublicView)
	if err != nil {
		return encodedPayload{}, apperrors.Wrap(err, "failed to marshal public view")
	}

	encryptedFields, err := json.Marshal(record.EncryptedFields)
	if err != nil {
		return encodedPayload{}, apperrors.Wrap(err, "failed to marshal encrypted fields")
	}

	return encodedPayload{publicView: string(publicView), encryptedFields: string(encryptedFields)}, nil
}

// scanRecord reads one row selected with recordColumns. uuid.UUID scans both the
// PostgreSQL text form and the MySQL BINARY(16) form.
func scanRecord(s rowScanner) (*extractionDomain.ExtractionRecord, error) {
	var record extractionDomain.ExtractionRecord
	var publicView, encryptedFields []byte
	var confidence, state string

	err := s.Scan(
		&record.ID,
		&record.DocumentID,
		&record.ApplicationID,
		&record.UserID,
		&publicView,
		&encryptedFields,
		&record.ContentHash,
		&confidence,
		&record.CreatedAt,
		&record.ExpiresAt,
		&state,
		&record.ReviewedAt,
		&record.ReviewedBy,
		&record.AppliedAt,
		&record.AppliedBy,
		&record.AppliedTo,
		&record.Provenance.IP,
		&record.Provenance.UserAgent,
	)
	if err != nil {
		return nil, err
	}

	record.ReviewState, err = extractionDomain.ParseReviewState(state)
	if err != nil {
		return nil, err
	}

	record.Confidence, err = extractionDomain.ParseConfidence(confidence)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse stored confidence")
	}

	record.PublicView = make(map[extractionDomain.FieldName]string)
	if err := json.Unmarshal(publicView, &record.PublicView); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal public view")
	}

	record.EncryptedFields = make(map[extractionDomain.FieldName]cryptoDomain.Envelope)
	if err := json.Unmarshal(encryptedFields, &record.EncryptedFields); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal encrypted fields")
	}

	record.CreatedAt = record.CreatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	return &record, nil
}

func nullableUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	return &id.UUID
}
