package dto

import (
	"sort"
	"time"

	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// ExtractionResponse is the public rendering of an extraction record. Sensitive values
// appear only masked in PublicView; EncryptedFields lists names, never envelopes.
type ExtractionResponse struct {
	ID              string            `json:"id"`
	DocumentID      string            `json:"document_id"`
	ApplicationID   string            `json:"application_id"`
	UserID          string            `json:"user_id"`
	PublicView      map[string]string `json:"public_view"`
	EncryptedFields []string          `json:"encrypted_fields"`
	ContentHash     string            `json:"content_hash"`
	Confidence      string            `json:"confidence"`
	ReviewState     string            `json:"review_state"`
	CreatedAt       time.Time         `json:"created_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy      *string           `json:"reviewed_by,omitempty"`
	AppliedAt       *time.Time        `json:"applied_at,omitempty"`
	AppliedBy       *string           `json:"applied_by,omitempty"`
	AppliedTo       *string           `json:"applied_to,omitempty"`
}

// MapRecordToResponse converts a domain record to its public API rendering.
func MapRecordToResponse(record *extractionDomain.ExtractionRecord) ExtractionResponse {
	view := make(map[string]string, len(record.PublicView))
	for name, value := range record.PublicView {
		view[string(name)] = value
	}

	encrypted := make([]string, 0, len(record.EncryptedFields))
	for name := range record.EncryptedFields {
		encrypted = append(encrypted, string(name))
	}
	sort.Strings(encrypted)

	return ExtractionResponse{
		ID:              record.ID.String(),
		DocumentID:      record.DocumentID,
		ApplicationID:   record.ApplicationID,
		UserID:          record.UserID,
		PublicView:      view,
		EncryptedFields: encrypted,
		ContentHash:     record.ContentHash,
		Confidence:      record.Confidence.String(),
		ReviewState:     string(record.ReviewState),
		CreatedAt:       record.CreatedAt,
		ExpiresAt:       record.ExpiresAt,
		ReviewedAt:      record.ReviewedAt,
		ReviewedBy:      record.ReviewedBy,
		AppliedAt:       record.AppliedAt,
		AppliedBy:       record.AppliedBy,
		AppliedTo:       record.AppliedTo,
	}
}

// ListExtractionsResponse represents a paginated list of extraction records.
type ListExtractionsResponse struct {
	Data []ExtractionResponse `json:"data"`
}

// MapRecordsToListResponse converts domain records to a list response.
func MapRecordsToListResponse(records []*extractionDomain.ExtractionRecord) ListExtractionsResponse {
	data := make([]ExtractionResponse, 0, len(records))
	for _, record := range records {
		data = append(data, MapRecordToResponse(record))
	}
	return ListExtractionsResponse{Data: data}
}

// DecryptFieldResponse carries one decrypted sensitive value.
// SECURITY: Must be transmitted over HTTPS only.
type DecryptFieldResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}
