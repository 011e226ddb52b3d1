package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/extractvault/internal/database"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// PostgreSQLExtractionRepository implements extraction record persistence for PostgreSQL.
type PostgreSQLExtractionRepository struct {
	db *sql.DB
}

// NewPostgreSQLExtractionRepository creates a new PostgreSQL extraction repository.
func NewPostgreSQLExtractionRepository(db *sql.DB) *PostgreSQLExtractionRepository {
	return &PostgreSQLExtractionRepository{db: db}
}

// Create inserts a new extraction record.
func (p *PostgreSQLExtractionRepository) Create(
	ctx context.Context,
	record *extractionDomain.ExtractionRecord,
) error {
	querier := database.GetTx(ctx, p.db)

	payload, err := encodePayload(record)
	if err != nil {
		return err
	}

	query := `INSERT INTO extractions (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.DocumentID,
		record.ApplicationID,
		record.UserID,
		payload.publicView,
		payload.encryptedFields,
		record.ContentHash,
		record.Confidence.String(),
		record.CreatedAt,
		record.ExpiresAt,
		string(record.ReviewState),
		record.ReviewedAt,
		record.ReviewedBy,
		record.AppliedAt,
		record.AppliedBy,
		record.AppliedTo,
		record.Provenance.IP,
		record.Provenance.UserAgent,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create extraction record")
	}
	return nil
}

func (p *PostgreSQLExtractionRepository) get(
	ctx context.Context,
	id uuid.UUID,
	forUpdate bool,
) (*extractionDomain.ExtractionRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM extractions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	record, err := scanRecord(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, extractionDomain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get extraction record")
	}
	return record, nil
}

// Get retrieves an extraction record by id.
func (p *PostgreSQLExtractionRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*extractionDomain.ExtractionRecord, error) {
	return p.get(ctx, id, false)
}

// GetForUpdate retrieves an extraction record and locks its row.
func (p *PostgreSQLExtractionRepository) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*extractionDomain.ExtractionRecord, error) {
	return p.get(ctx, id, true)
}

// UpdateReviewState persists the workflow columns of a record.
func (p *PostgreSQLExtractionRepository) UpdateReviewState(
	ctx context.Context,
	record *extractionDomain.ExtractionRecord,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE extractions
			  SET review_state = $1, reviewed_at = $2, reviewed_by = $3,
			      applied_at = $4, applied_by = $5, applied_to = $6
			  WHERE id = $7`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(record.ReviewState),
		record.ReviewedAt,
		record.ReviewedBy,
		record.AppliedAt,
		record.AppliedBy,
		record.AppliedTo,
		record.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update extraction review state")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return extractionDomain.ErrRecordNotFound
	}
	return nil
}

// ListByApplication retrieves records for an application, newest first, with pagination.
func (p *PostgreSQLExtractionRepository) ListByApplication(
	ctx context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM extractions
			  WHERE application_id = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, applicationID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list extraction records")
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*extractionDomain.ExtractionRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan extraction record")
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate extraction records")
	}
	return records, nil
}

// LockDedupKey creates the dedup row if missing and locks it for the transaction.
func (p *PostgreSQLExtractionRepository) LockDedupKey(
	ctx context.Context,
	documentID, contentHash string,
) (*uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(
		ctx,
		`INSERT INTO extraction_dedup (document_id, content_hash, record_id)
		 VALUES ($1, $2, NULL)
		 ON CONFLICT (document_id, content_hash) DO NOTHING`,
		documentID,
		contentHash,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim dedup key")
	}

	var recordID uuid.NullUUID
	err = querier.QueryRowContext(
		ctx,
		`SELECT record_id FROM extraction_dedup
		 WHERE document_id = $1 AND content_hash = $2
		 FOR UPDATE`,
		documentID,
		contentHash,
	).Scan(&recordID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock dedup key")
	}

	return nullableUUID(recordID), nil
}

// BindDedupKey points the dedup row at a record.
func (p *PostgreSQLExtractionRepository) BindDedupKey(
	ctx context.Context,
	documentID, contentHash string,
	recordID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(
		ctx,
		`UPDATE extraction_dedup SET record_id = $1 WHERE document_id = $2 AND content_hash = $3`,
		recordID,
		documentID,
		contentHash,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to bind dedup key")
	}
	return nil
}

// ListExpiredIDs returns ids of EXTRACTED records whose retention window has passed.
func (p *PostgreSQLExtractionRepository) ListExpiredIDs(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT id FROM extractions
		 WHERE review_state = $1 AND expires_at <= $2
		 ORDER BY expires_at, id
		 LIMIT $3`,
		string(extractionDomain.StateExtracted),
		now,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired extraction records")
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan expired extraction id")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate expired extraction ids")
	}
	return ids, nil
}

// DeleteExpired conditionally deletes one expired EXTRACTED record and its dedup row.
func (p *PostgreSQLExtractionRepository) DeleteExpired(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM extractions WHERE id = $1 AND review_state = $2 AND expires_at <= $3`,
		id,
		string(extractionDomain.StateExtracted),
		now,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete expired extraction record")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM extraction_dedup WHERE record_id = $1`, id); err != nil {
		return false, apperrors.Wrap(err, "failed to delete dedup key")
	}
	return true, nil
}

// CountExpired counts EXTRACTED records whose retention window has passed.
func (p *PostgreSQLExtractionRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM extractions WHERE review_state = $1 AND expires_at <= $2`,
		string(extractionDomain.StateExtracted),
		now,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired extraction records")
	}
	return count, nil
}
