package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	"github.com/allisson/extractvault/internal/database"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// Config holds extraction use case configuration.
type Config struct {
	RetentionWindow time.Duration
}

type extractionUseCase struct {
	config        Config
	txManager     database.TxManager
	repo          Repository
	cipher        FieldCipher
	fingerprinter Fingerprinter
	extractor     Extractor
	writer        SensitiveFieldWriter
	audit         auditEmitter
	logger        *slog.Logger
	ingests       singleflight.Group
	now           func() time.Time
}

// NewExtractionUseCase creates an ExtractionUseCase with injected dependencies.
func NewExtractionUseCase(
	config Config,
	txManager database.TxManager,
	repo Repository,
	cipher FieldCipher,
	fingerprinter Fingerprinter,
	extractor Extractor,
	writer SensitiveFieldWriter,
	auditor Auditor,
	logger *slog.Logger,
) ExtractionUseCase {
	if config.RetentionWindow <= 0 {
		config.RetentionWindow = extractionDomain.DefaultRetentionWindow
	}
	return &extractionUseCase{
		config:        config,
		txManager:     txManager,
		repo:          repo,
		cipher:        cipher,
		fingerprinter: fingerprinter,
		extractor:     extractor,
		writer:        writer,
		audit:         auditEmitter{auditor: auditor, logger: logger},
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores a new extraction record, or returns the live record already stored for
// the same document and content. Concurrent ingests of the same content inside this
// process share one database round trip; across processes the dedup row lock decides.
func (e *extractionUseCase) Ingest(
	ctx context.Context,
	input IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	fields, confidence, err := e.prepare(input)
	if err != nil {
		e.auditFailure(ctx, input, err)
		return nil, err
	}

	contentHash := e.fingerprinter.Fingerprint(input.DocumentBytes)

	var leader, created bool
	v, err, _ := e.ingests.Do(input.DocumentID+"\x00"+contentHash, func() (any, error) {
		leader = true
		record, isNew, err := e.ingestOnce(ctx, input, fields, confidence, contentHash)
		created = isNew
		return record, err
	})
	if err != nil {
		e.auditFailure(ctx, input, err)
		return nil, err
	}
	record := v.(*extractionDomain.ExtractionRecord)

	if leader && created {
		e.audit.emit(ctx, extractionDomain.EventExtractionCompleted, input.UserID, record.ID, map[string]any{
			"document_id":    record.DocumentID,
			"application_id": record.ApplicationID,
			"content_hash":   record.ContentHash,
			"confidence":     record.Confidence.String(),
			"fields":         fieldNames(sortedKeys(record.PublicView)),
			"ip":             input.Provenance.IP,
			"user_agent":     input.Provenance.UserAgent,
		})
		return record, nil
	}

	e.audit.emit(ctx, extractionDomain.EventExtractionDeduplicated, input.UserID, record.ID, map[string]any{
		"document_id":  record.DocumentID,
		"content_hash": record.ContentHash,
	})
	return record, nil
}

// ingestOnce runs the dedup-check-and-create step in a single transaction holding the
// dedup row lock.
func (e *extractionUseCase) ingestOnce(
	ctx context.Context,
	input IngestInput,
	fields map[extractionDomain.FieldName]string,
	confidence decimal.Decimal,
	contentHash string,
) (*extractionDomain.ExtractionRecord, bool, error) {
	var record *extractionDomain.ExtractionRecord
	var created bool

	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		record, created = nil, false
		now := e.now()

		boundID, err := e.repo.LockDedupKey(ctx, input.DocumentID, contentHash)
		if err != nil {
			return err
		}

		if boundID != nil {
			existing, err := e.repo.Get(ctx, *boundID)
			switch {
			case err == nil && !existing.IsSweepable(now):
				record = existing
				return nil
			case err != nil && !apperrors.Is(err, extractionDomain.ErrRecordNotFound):
				return err
			}
		}

		fresh, err := e.seal(input, fields, confidence, contentHash, now)
		if err != nil {
			return err
		}

		if err := e.repo.Create(ctx, fresh); err != nil {
			return err
		}
		if err := e.repo.BindDedupKey(ctx, input.DocumentID, contentHash, fresh.ID); err != nil {
			return err
		}

		record, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return record, created, nil
}

// seal builds a new record, masking and encrypting every sensitive field.
func (e *extractionUseCase) seal(
	input IngestInput,
	fields map[extractionDomain.FieldName]string,
	confidence decimal.Decimal,
	contentHash string,
	now time.Time,
) (*extractionDomain.ExtractionRecord, error) {
	record := &extractionDomain.ExtractionRecord{
		ID:              uuid.Must(uuid.NewV7()),
		DocumentID:      input.DocumentID,
		ApplicationID:   input.ApplicationID,
		UserID:          input.UserID,
		PublicView:      make(map[extractionDomain.FieldName]string, len(fields)),
		EncryptedFields: make(map[extractionDomain.FieldName]cryptoDomain.Envelope),
		ContentHash:     contentHash,
		Confidence:      confidence,
		CreatedAt:       now,
		ExpiresAt:       now.Add(e.config.RetentionWindow),
		ReviewState:     extractionDomain.StateExtracted,
		Provenance:      input.Provenance,
	}

	for name, value := range fields {
		kind := name.Kind()
		if !kind.IsSensitive() {
			record.PublicView[name] = value
			continue
		}

		record.PublicView[name] = extractionDomain.Mask(kind, value)

		plaintext := []byte(value)
		env, err := e.cipher.Encrypt(plaintext, extractionDomain.FieldAAD(record.ID, name))
		cryptoDomain.Zero(plaintext)
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to encrypt field %s", name)
		}
		record.EncryptedFields[name] = env
	}

	return record, nil
}

// prepare classifies the raw field map and validates the confidence score.
func (e *extractionUseCase) prepare(
	input IngestInput,
) (map[extractionDomain.FieldName]string, decimal.Decimal, error) {
	fields := make(map[extractionDomain.FieldName]string, len(input.Fields))
	for raw, value := range input.Fields {
		name, err := extractionDomain.ParseFieldName(raw)
		if err != nil {
			return nil, decimal.Decimal{}, fmt.Errorf("%w: %s", err, raw)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		fields[name] = value
	}

	if len(fields) == 0 {
		return nil, decimal.Decimal{}, extractionDomain.ErrNoExtractableData
	}

	confidence, err := extractionDomain.ParseConfidence(input.Confidence)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}

	return fields, confidence, nil
}

func (e *extractionUseCase) auditFailure(ctx context.Context, input IngestInput, cause error) {
	e.audit.emit(ctx, extractionDomain.EventExtractionFailed, input.UserID, uuid.Nil, map[string]any{
		"document_id":    input.DocumentID,
		"application_id": input.ApplicationID,
		"reason":         cause.Error(),
	})
}

// ExtractAndIngest calls the upstream extractor, drops field names outside the known
// set, then ingests the result.
func (e *extractionUseCase) ExtractAndIngest(
	ctx context.Context,
	input IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	if e.extractor == nil {
		return nil, extractionDomain.ErrExtractorNotConfigured
	}

	result, err := e.extractor.Extract(ctx, input.DocumentBytes)
	if err != nil {
		e.auditFailure(ctx, input, err)
		return nil, apperrors.Wrap(err, "extraction provider failed")
	}

	fields := make(map[string]string, len(result.Fields))
	for raw, value := range result.Fields {
		if _, err := extractionDomain.ParseFieldName(raw); err != nil {
			e.logger.WarnContext(ctx, "dropping unknown extracted field",
				slog.String("document_id", input.DocumentID),
				slog.String("field", raw),
			)
			continue
		}
		fields[raw] = value
	}

	input.Fields = fields
	input.Confidence = result.Confidence.String()
	return e.Ingest(ctx, input)
}

// Get returns a record by id.
func (e *extractionUseCase) Get(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error) {
	var record *extractionDomain.ExtractionRecord
	err := e.txManager.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		record, err = e.repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetPublicView returns a copy of the record's masked view.
func (e *extractionUseCase) GetPublicView(
	ctx context.Context,
	id uuid.UUID,
) (map[extractionDomain.FieldName]string, error) {
	record, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	view := make(map[extractionDomain.FieldName]string, len(record.PublicView))
	for k, v := range record.PublicView {
		view[k] = v
	}
	return view, nil
}

// ListByApplication returns records for an application with pagination.
func (e *extractionUseCase) ListByApplication(
	ctx context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	var records []*extractionDomain.ExtractionRecord
	err := e.txManager.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		records, err = e.repo.ListByApplication(ctx, applicationID, offset, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DecryptField opens one sensitive field for an elevated caller and audits the access.
func (e *extractionUseCase) DecryptField(
	ctx context.Context,
	id uuid.UUID,
	field extractionDomain.FieldName,
	auth extractionDomain.AuthContext,
) ([]byte, error) {
	if !auth.IsElevated(e.now()) {
		return nil, extractionDomain.ErrElevationRequired
	}
	if !field.IsSensitive() {
		return nil, extractionDomain.ErrFieldNotSensitive
	}

	record, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	env, ok := record.EncryptedFields[field]
	if !ok {
		return nil, extractionDomain.ErrFieldNotPresent
	}

	plaintext, err := e.open(ctx, record.ID, field, env)
	if err != nil {
		return nil, err
	}

	e.audit.emit(ctx, extractionDomain.EventDataDecrypted, auth.ActorID, record.ID, map[string]any{
		"field":   string(field),
		"purpose": "view",
	})
	return plaintext, nil
}

// open decrypts an envelope and logs integrity failures loudly.
func (e *extractionUseCase) open(
	ctx context.Context,
	recordID uuid.UUID,
	field extractionDomain.FieldName,
	env cryptoDomain.Envelope,
) ([]byte, error) {
	plaintext, err := e.cipher.Decrypt(env, extractionDomain.FieldAAD(recordID, field))
	if err != nil {
		e.logger.ErrorContext(ctx, "field decryption failed",
			slog.String("record_id", recordID.String()),
			slog.String("field", string(field)),
			slog.String("key_id", env.KeyID),
			slog.Any("error", err),
		)
		return nil, err
	}
	return plaintext, nil
}

// MarkReviewed moves a record from EXTRACTED to REVIEWED.
func (e *extractionUseCase) MarkReviewed(
	ctx context.Context,
	id uuid.UUID,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	var record *extractionDomain.ExtractionRecord
	var transitioned bool

	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		record, transitioned = nil, false
		now := e.now()

		current, err := e.repo.GetForUpdate(ctx, id)
		if err != nil {
			if apperrors.Is(err, extractionDomain.ErrRecordNotFound) {
				return fmt.Errorf("%w: %w", extractionDomain.ErrInvalidTransition, err)
			}
			return err
		}

		if current.ReviewState.AtLeast(extractionDomain.StateReviewed) {
			record = current
			return nil
		}
		if current.IsExpired(now) {
			return extractionDomain.ErrInvalidTransition
		}

		if err := current.MarkReviewed(auth.ActorID, now); err != nil {
			return err
		}
		if err := e.repo.UpdateReviewState(ctx, current); err != nil {
			return err
		}

		record, transitioned = current, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		e.audit.emit(ctx, extractionDomain.EventExtractionReviewed, auth.ActorID, record.ID, nil)
	}
	return record, nil
}

// ApplyToApplication copies every sensitive field, decrypted, into the target
// application's sensitive-field store and moves the record to APPLIED. The downstream
// writes share the transaction holding the record lock, so a concurrent sweep either
// sees a non-EXTRACTED record or deletes it before this call finds it.
func (e *extractionUseCase) ApplyToApplication(
	ctx context.Context,
	id uuid.UUID,
	targetApplicationID string,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	if !auth.IsElevated(e.now()) {
		return nil, extractionDomain.ErrElevationRequired
	}

	var record *extractionDomain.ExtractionRecord
	var copied []extractionDomain.FieldName
	var applied bool

	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		record, copied, applied = nil, nil, false

		current, err := e.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		switch current.ReviewState {
		case extractionDomain.StateExtracted:
			return extractionDomain.ErrNotReviewed
		case extractionDomain.StateApplied:
			if current.AppliedTo != nil && *current.AppliedTo == targetApplicationID {
				record = current
				return nil
			}
			return extractionDomain.ErrInvalidTransition
		}

		for _, field := range sortedKeys(current.EncryptedFields) {
			plaintext, err := e.open(ctx, current.ID, field, current.EncryptedFields[field])
			if err != nil {
				return err
			}
			err = e.writer.WriteSensitiveField(ctx, targetApplicationID, field, plaintext)
			cryptoDomain.Zero(plaintext)
			if err != nil {
				return apperrors.Wrapf(err, "failed to write field %s", field)
			}
			copied = append(copied, field)
		}

		if err := current.MarkApplied(auth.ActorID, targetApplicationID, e.now()); err != nil {
			return err
		}
		if err := e.repo.UpdateReviewState(ctx, current); err != nil {
			return err
		}

		record, applied = current, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		return record, nil
	}

	for _, field := range copied {
		e.audit.emit(ctx, extractionDomain.EventDataDecrypted, auth.ActorID, record.ID, map[string]any{
			"field":                 string(field),
			"purpose":               "apply",
			"target_application_id": targetApplicationID,
		})
	}
	e.audit.emit(ctx, extractionDomain.EventExtractionApplied, auth.ActorID, record.ID, map[string]any{
		"target_application_id": targetApplicationID,
		"fields":                fieldNames(copied),
	})
	return record, nil
}

func sortedKeys[V any](m map[extractionDomain.FieldName]V) []extractionDomain.FieldName {
	keys := make([]extractionDomain.FieldName, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
