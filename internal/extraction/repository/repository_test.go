package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func sampleRecord(now time.Time) *extractionDomain.ExtractionRecord {
	return &extractionDomain.ExtractionRecord{
		ID:            uuid.Must(uuid.NewV7()),
		DocumentID:    "doc-1",
		ApplicationID: "app-1",
		UserID:        "user-1",
		PublicView: map[extractionDomain.FieldName]string{
			extractionDomain.FieldSSN:          "***-**-6789",
			extractionDomain.FieldBusinessName: "Acme LLC",
		},
		EncryptedFields: map[extractionDomain.FieldName]cryptoDomain.Envelope{
			extractionDomain.FieldSSN: {
				KeyID:      "k1",
				Algorithm:  cryptoDomain.AESGCM,
				Nonce:      []byte("0123456789ab"),
				Ciphertext: []byte("cipher"),
				Tag:        []byte("0123456789abcdef"),
			},
		},
		ContentHash: "abc123",
		Confidence:  decimal.RequireFromString("0.95"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(extractionDomain.DefaultRetentionWindow),
		ReviewState: extractionDomain.StateExtracted,
		Provenance:  extractionDomain.Provenance{IP: "10.0.0.1", UserAgent: "test"},
	}
}

func recordRows(t *testing.T, record *extractionDomain.ExtractionRecord, id any) *sqlmock.Rows {
	t.Helper()

	payload, err := encodePayload(record)
	require.NoError(t, err)

	return sqlmock.NewRows([]string{
		"id", "document_id", "application_id", "user_id", "public_view", "encrypted_fields",
		"content_hash", "confidence", "created_at", "expires_at", "review_state", "reviewed_at",
		"reviewed_by", "applied_at", "applied_by", "applied_to", "provenance_ip", "provenance_user_agent",
	}).AddRow(
		id,
		record.DocumentID,
		record.ApplicationID,
		record.UserID,
		[]byte(payload.publicView),
		[]byte(payload.encryptedFields),
		record.ContentHash,
		record.Confidence.String(),
		record.CreatedAt,
		record.ExpiresAt,
		string(record.ReviewState),
		nil,
		nil,
		nil,
		nil,
		nil,
		record.Provenance.IP,
		record.Provenance.UserAgent,
	)
}

func TestPostgreSQLExtractionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLExtractionRepository(db)
	record := sampleRecord(time.Now().UTC())

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO extractions`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// capturedArg matches any value and remembers it.
type capturedArg struct {
	value any
}

func (c *capturedArg) Match(v driver.Value) bool {
	c.value = v
	return true
}

func TestPostgreSQLExtractionRepository_ConfidenceRoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLExtractionRepository(db)
	record := sampleRecord(time.Now().UTC())
	record.Confidence = decimal.RequireFromString("0.123456789")

	stored := &capturedArg{}
	args := make([]driver.Value, 18)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[7] = stored

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO extractions`)).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, "0.123456789", stored.value)

	rows := recordRows(t, record, record.ID.String())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM extractions WHERE id = $1`)).
		WithArgs(record.ID).
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.123456789", got.Confidence.String())
	assert.True(t, record.Confidence.Equal(got.Confidence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLExtractionRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		record := sampleRecord(time.Now().UTC())

		mock.ExpectQuery(regexp.QuoteMeta(`FROM extractions WHERE id = $1`)).
			WithArgs(record.ID).
			WillReturnRows(recordRows(t, record, record.ID.String()))

		got, err := repo.Get(context.Background(), record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
		assert.Equal(t, record.PublicView, got.PublicView)
		assert.Equal(t, record.EncryptedFields, got.EncryptedFields)
		assert.True(t, record.Confidence.Equal(got.Confidence))
		assert.Equal(t, extractionDomain.StateExtracted, got.ReviewState)
		assert.Nil(t, got.ReviewedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		id := uuid.Must(uuid.NewV7())

		mock.ExpectQuery(regexp.QuoteMeta(`FROM extractions WHERE id = $1`)).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), id)
		assert.ErrorIs(t, err, extractionDomain.ErrRecordNotFound)
	})

	t.Run("for update", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		record := sampleRecord(time.Now().UTC())

		mock.ExpectQuery(`FROM extractions WHERE id = \$1 FOR UPDATE`).
			WithArgs(record.ID).
			WillReturnRows(recordRows(t, record, record.ID.String()))

		_, err := repo.GetForUpdate(context.Background(), record.ID)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLExtractionRepository_UpdateReviewState_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLExtractionRepository(db)
	record := sampleRecord(time.Now().UTC())

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE extractions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateReviewState(context.Background(), record)
	assert.ErrorIs(t, err, extractionDomain.ErrRecordNotFound)
}

func TestPostgreSQLExtractionRepository_LockDedupKey(t *testing.T) {
	t.Run("unbound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (document_id, content_hash) DO NOTHING`)).
			WithArgs("doc-1", "hash").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT record_id FROM extraction_dedup`)).
			WithArgs("doc-1", "hash").
			WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(nil))

		id, err := repo.LockDedupKey(context.Background(), "doc-1", "hash")
		require.NoError(t, err)
		assert.Nil(t, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		recordID := uuid.Must(uuid.NewV7())

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO extraction_dedup`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(recordID.String()))

		id, err := repo.LockDedupKey(context.Background(), "doc-1", "hash")
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, recordID, *id)
	})
}

func TestPostgreSQLExtractionRepository_DeleteExpired(t *testing.T) {
	now := time.Now().UTC()

	t.Run("deleted", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		id := uuid.Must(uuid.NewV7())

		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM extractions WHERE id = $1 AND review_state = $2 AND expires_at <= $3`)).
			WithArgs(id, "EXTRACTED", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM extraction_dedup WHERE record_id = $1`)).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := repo.DeleteExpired(context.Background(), id, now)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("condition no longer holds", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLExtractionRepository(db)
		id := uuid.Must(uuid.NewV7())

		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM extractions`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := repo.DeleteExpired(context.Background(), id, now)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLExtractionRepository_CountExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLExtractionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM extractions`)).
		WithArgs("EXTRACTED", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMySQLExtractionRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLExtractionRepository(db)
	record := sampleRecord(time.Now().UTC())
	binID, err := record.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM extractions WHERE id = ?`)).
		WithArgs(binID).
		WillReturnRows(recordRows(t, record, binID))

	got, err := repo.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.PublicView, got.PublicView)
}

func TestMySQLExtractionRepository_LockDedupKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLExtractionRepository(db)
	recordID := uuid.Must(uuid.NewV7())
	binID, err := recordID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE document_id = document_id`)).
		WithArgs("doc-1", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("doc-1", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(binID))

	id, err := repo.LockDedupKey(context.Background(), "doc-1", "hash")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, recordID, *id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLExtractionRepository_UpdateReviewState_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLExtractionRepository(db)
	record := sampleRecord(time.Now().UTC())

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE extractions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM extractions WHERE id = ?`)).
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdateReviewState(context.Background(), record)
	assert.ErrorIs(t, err, extractionDomain.ErrRecordNotFound)
}

func TestMySQLExtractionRepository_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLExtractionRepository(db)
	id := uuid.Must(uuid.NewV7())
	binID, err := id.MarshalBinary()
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM extractions WHERE id = ? AND review_state = ? AND expires_at <= ?`)).
		WithArgs(binID, "EXTRACTED", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM extraction_dedup WHERE record_id = ?`)).
		WithArgs(binID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteExpired(context.Background(), id, now)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
