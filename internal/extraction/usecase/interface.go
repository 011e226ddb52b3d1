// Package usecase implements the extraction pipeline: ingest with content deduplication,
// the review and apply workflow gated by elevated authentication, and the retention
// sweeper that purges expired unreviewed records.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// Repository defines extraction record persistence. Methods use the transaction carried
// by ctx when present (database.GetTx).
type Repository interface {
	Create(ctx context.Context, record *extractionDomain.ExtractionRecord) error
	Get(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error)

	// GetForUpdate loads a record and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error)

	// UpdateReviewState persists the review, apply and actor columns of a record.
	UpdateReviewState(ctx context.Context, record *extractionDomain.ExtractionRecord) error

	// ListByApplication returns records for an application ordered by creation time
	// descending with pagination.
	ListByApplication(
		ctx context.Context,
		applicationID string,
		offset, limit int,
	) ([]*extractionDomain.ExtractionRecord, error)

	// LockDedupKey makes sure a dedup row exists for (documentID, contentHash), locks it
	// for the rest of the transaction and returns the record id bound to it, if any.
	LockDedupKey(ctx context.Context, documentID, contentHash string) (*uuid.UUID, error)

	// BindDedupKey points the locked dedup row at recordID.
	BindDedupKey(ctx context.Context, documentID, contentHash string, recordID uuid.UUID) error

	// ListExpiredIDs returns up to limit ids of EXTRACTED records with expires_at <= now.
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// DeleteExpired deletes the record and its dedup row only if it is still EXTRACTED
	// and expired at now. Returns false when another writer got there first.
	DeleteExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// CountExpired counts EXTRACTED records with expires_at <= now.
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

// FieldCipher seals and opens field values. *cryptoService.FieldCipher satisfies it.
type FieldCipher interface {
	Encrypt(plaintext, aad []byte) (cryptoDomain.Envelope, error)
	Decrypt(env cryptoDomain.Envelope, aad []byte) ([]byte, error)
}

// Fingerprinter computes document content hashes.
type Fingerprinter interface {
	Fingerprint(document []byte) string
}

// Extractor is the upstream OCR provider.
type Extractor interface {
	Extract(ctx context.Context, document []byte) (*extractionDomain.ExtractionResult, error)
}

// SensitiveFieldWriter is the downstream application's sensitive-field store. Writes
// must join the transaction carried by ctx and be idempotent per (application, field).
type SensitiveFieldWriter interface {
	WriteSensitiveField(
		ctx context.Context,
		applicationID string,
		field extractionDomain.FieldName,
		plaintext []byte,
	) error
}

// Auditor is the append-only audit log. recordID is uuid.Nil when no record exists.
type Auditor interface {
	Record(
		ctx context.Context,
		eventType extractionDomain.EventType,
		actorID string,
		recordID uuid.UUID,
		detail map[string]any,
	) error
}

// IngestInput carries one document extraction into the pipeline.
type IngestInput struct {
	DocumentID    string
	ApplicationID string
	UserID        string
	// Fields is the raw field map from the extractor. Ignored by ExtractAndIngest.
	Fields        map[string]string
	Confidence    string
	DocumentBytes []byte
	Provenance    extractionDomain.Provenance
}

// ExtractionUseCase defines ingest and review operations on extraction records.
type ExtractionUseCase interface {
	// Ingest stores a new record or returns the existing non-expired record for the same
	// document and content.
	Ingest(ctx context.Context, input IngestInput) (*extractionDomain.ExtractionRecord, error)

	// ExtractAndIngest runs the upstream extractor on the document bytes, then ingests.
	ExtractAndIngest(ctx context.Context, input IngestInput) (*extractionDomain.ExtractionRecord, error)

	// Get returns a record. Callers must render only its public view.
	Get(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error)

	// GetPublicView returns the masked view of a record. No elevation required.
	GetPublicView(ctx context.Context, id uuid.UUID) (map[extractionDomain.FieldName]string, error)

	ListByApplication(
		ctx context.Context,
		applicationID string,
		offset, limit int,
	) ([]*extractionDomain.ExtractionRecord, error)

	// DecryptField returns the plaintext of one sensitive field. Requires elevation.
	// Callers must zero the returned slice after use.
	DecryptField(
		ctx context.Context,
		id uuid.UUID,
		field extractionDomain.FieldName,
		auth extractionDomain.AuthContext,
	) ([]byte, error)

	// MarkReviewed moves a record to REVIEWED. Idempotent once reviewed or applied.
	MarkReviewed(
		ctx context.Context,
		id uuid.UUID,
		auth extractionDomain.AuthContext,
	) (*extractionDomain.ExtractionRecord, error)

	// ApplyToApplication copies decrypted sensitive values into the target application
	// and moves the record to APPLIED. Requires elevation.
	ApplyToApplication(
		ctx context.Context,
		id uuid.UUID,
		targetApplicationID string,
		auth extractionDomain.AuthContext,
	) (*extractionDomain.ExtractionRecord, error)
}

// SweeperUseCase defines the retention sweeper operations.
type SweeperUseCase interface {
	// Start runs Sweep on every interval tick until ctx is cancelled.
	Start(ctx context.Context) error

	// Sweep deletes EXTRACTED records with expires_at <= now and returns how many were
	// actually deleted by this call.
	Sweep(ctx context.Context, now time.Time) (int64, error)

	// CountExpired reports how many records a sweep at now would delete.
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}
