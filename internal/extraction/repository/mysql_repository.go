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

// MySQLExtractionRepository implements extraction record persistence for MySQL.
// Uses BINARY(16) for UUID storage.
type MySQLExtractionRepository struct {
	db *sql.DB
}

// NewMySQLExtractionRepository creates a new MySQL extraction repository.
func NewMySQLExtractionRepository(db *sql.DB) *MySQLExtractionRepository {
	return &MySQLExtractionRepository{db: db}
}

func binaryID(id uuid.UUID) ([]byte, error) {
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal extraction id")
	}
	return b, nil
}

// Create inserts a new extraction record.
func (m *MySQLExtractionRepository) Create(
	ctx context.Context,
	record *extractionDomain.ExtractionRecord,
) error {
	querier := database.GetTx(ctx, m.db)

	payload, err := encodePayload(record)
	if err != nil {
		return err
	}

	id, err := binaryID(record.ID)
	if err != nil {
		return err
	}

	query := `INSERT INTO extractions (` + recordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLExtractionRepository) get(
	ctx context.Context,
	id uuid.UUID,
	forUpdate bool,
) (*extractionDomain.ExtractionRecord, error) {
	querier := database.GetTx(ctx, m.db)

	bid, err := binaryID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM extractions WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	record, err := scanRecord(querier.QueryRowContext(ctx, query, bid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, extractionDomain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get extraction record")
	}
	return record, nil
}

// Get retrieves an extraction record by id.
func (m *MySQLExtractionRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*extractionDomain.ExtractionRecord, error) {
	return m.get(ctx, id, false)
}

// GetForUpdate retrieves an extraction record and locks its row.
func (m *MySQLExtractionRepository) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*extractionDomain.ExtractionRecord, error) {
	return m.get(ctx, id, true)
}

// UpdateReviewState persists the workflow columns of a record.
func (m *MySQLExtractionRepository) UpdateReviewState(
	ctx context.Context,
	record *extractionDomain.ExtractionRecord,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := binaryID(record.ID)
	if err != nil {
		return err
	}

	query := `UPDATE extractions
			  SET review_state = ?, reviewed_at = ?, reviewed_by = ?,
			      applied_at = ?, applied_by = ?, applied_to = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(
		ctx,
		query,
		string(record.ReviewState),
		record.ReviewedAt,
		record.ReviewedBy,
		record.AppliedAt,
		record.AppliedBy,
		record.AppliedTo,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update extraction review state")
	}

	// MySQL reports zero affected rows for an unchanged row, so existence is checked
	// against the locked row instead.
	var exists int
	err = querier.QueryRowContext(ctx, `SELECT 1 FROM extractions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return extractionDomain.ErrRecordNotFound
		}
		return apperrors.Wrap(err, "failed to verify extraction record")
	}
	return nil
}

// ListByApplication retrieves records for an application, newest first, with pagination.
func (m *MySQLExtractionRepository) ListByApplication(
	ctx context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recordColumns + ` FROM extractions
			  WHERE application_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ? OFFSET ?`

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
// ON DUPLICATE KEY UPDATE takes the exclusive lock directly, avoiding the shared-lock
// upgrade deadlock that INSERT IGNORE followed by FOR UPDATE would cause.
func (m *MySQLExtractionRepository) LockDedupKey(
	ctx context.Context,
	documentID, contentHash string,
) (*uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(
		ctx,
		`INSERT INTO extraction_dedup (document_id, content_hash, record_id)
		 VALUES (?, ?, NULL)
		 ON DUPLICATE KEY UPDATE document_id = document_id`,
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
		 WHERE document_id = ? AND content_hash = ?
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
func (m *MySQLExtractionRepository) BindDedupKey(
	ctx context.Context,
	documentID, contentHash string,
	recordID uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := binaryID(recordID)
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(
		ctx,
		`UPDATE extraction_dedup SET record_id = ? WHERE document_id = ? AND content_hash = ?`,
		id,
		documentID,
		contentHash,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to bind dedup key")
	}
	return nil
}

// ListExpiredIDs returns ids of EXTRACTED records whose retention window has passed.
func (m *MySQLExtractionRepository) ListExpiredIDs(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT id FROM extractions
		 WHERE review_state = ? AND expires_at <= ?
		 ORDER BY expires_at, id
		 LIMIT ?`,
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
func (m *MySQLExtractionRepository) DeleteExpired(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	bid, err := binaryID(id)
	if err != nil {
		return false, err
	}

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM extractions WHERE id = ? AND review_state = ? AND expires_at <= ?`,
		bid,
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

	if _, err := querier.ExecContext(ctx, `DELETE FROM extraction_dedup WHERE record_id = ?`, bid); err != nil {
		return false, apperrors.Wrap(err, "failed to delete dedup key")
	}
	return true, nil
}

// CountExpired counts EXTRACTED records whose retention window has passed.
func (m *MySQLExtractionRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM extractions WHERE review_state = ? AND expires_at <= ?`,
		string(extractionDomain.StateExtracted),
		now,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired extraction records")
	}
	return count, nil
}
