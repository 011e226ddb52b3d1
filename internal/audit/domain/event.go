// Package domain defines the signed audit trail entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is one append-only entry of the audit trail. RecordID is uuid.Nil for events
// not tied to a stored extraction record, such as a failed ingest.
type Event struct {
	ID        uuid.UUID
	EventType string
	ActorID   string
	RecordID  uuid.UUID
	Detail    map[string]any
	KeyID     string
	Signature []byte
	CreatedAt time.Time
}

// VerificationReport summarizes a batch signature check.
type VerificationReport struct {
	TotalChecked  int64
	ValidCount    int64
	InvalidCount  int64
	InvalidEvents []uuid.UUID
}

// Passed reports whether every checked event carried a valid signature.
func (r *VerificationReport) Passed() bool {
	return r.InvalidCount == 0
}
