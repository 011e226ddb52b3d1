// Package usecase records and verifies the signed audit trail.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// Repository defines audit event persistence.
type Repository interface {
	Create(ctx context.Context, event *auditDomain.Event) error
	List(ctx context.Context, start, end time.Time, offset, limit int) ([]*auditDomain.Event, error)
}

// KeySource supplies the field keys that signing keys are derived from.
// *cryptoDomain.KeyRing satisfies it.
type KeySource interface {
	Active() (*cryptoDomain.FieldKey, error)
	Lookup(id string) (*cryptoDomain.FieldKey, error)
}

// AuditUseCase appends signed events and verifies stored ones.
type AuditUseCase interface {
	Record(
		ctx context.Context,
		eventType extractionDomain.EventType,
		actorID string,
		recordID uuid.UUID,
		detail map[string]any,
	) error

	// VerifyBatch checks the signature of every event created in [start, end).
	VerifyBatch(ctx context.Context, start, end time.Time) (*auditDomain.VerificationReport, error)
}
