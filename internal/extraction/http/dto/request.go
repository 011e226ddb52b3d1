// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/extractvault/internal/validation"
)

// MaxDocumentSize bounds the decoded document accepted by the ingest endpoint.
const MaxDocumentSize = 10 << 20

// IngestExtractionRequest carries one uploaded document. The application id comes from
// the URL and the user id from the bearer token; UserID is optional and must match it.
// When Fields is omitted the document is sent to the OCR provider.
type IngestExtractionRequest struct {
	DocumentID string            `json:"document_id"`
	UserID     string            `json:"user_id"`
	Document   string            `json:"document"` // Base64-encoded document bytes
	Fields     map[string]string `json:"fields,omitempty"`
	Confidence string            `json:"confidence,omitempty"`
}

// Validate checks if the ingest request is valid.
func (r *IngestExtractionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DocumentID,
			validation.Required,
			customValidation.Identifier,
		),
		validation.Field(&r.UserID,
			customValidation.NotBlank,
		),
		validation.Field(&r.Document,
			validation.Required,
			customValidation.Base64,
			customValidation.MaxDecodedLen(MaxDocumentSize),
		),
		validation.Field(&r.Confidence,
			validation.When(len(r.Fields) > 0, validation.Required),
			validation.When(r.Confidence != "", customValidation.Confidence),
		),
	)
}

// HasFields reports whether the caller supplied an already extracted field map.
func (r *IngestExtractionRequest) HasFields() bool {
	return len(r.Fields) > 0
}

// ApplyExtractionRequest names the application that receives the sensitive values.
type ApplyExtractionRequest struct {
	TargetApplicationID string `json:"target_application_id"`
}

// Validate checks if the apply request is valid.
func (r *ApplyExtractionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TargetApplicationID,
			validation.Required,
			customValidation.Identifier,
		),
	)
}
