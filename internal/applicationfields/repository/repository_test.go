package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
)

func testEnvelope() cryptoDomain.Envelope {
	return cryptoDomain.Envelope{
		KeyID:      "v1",
		Algorithm:  cryptoDomain.AESGCM,
		Nonce:      []byte("0123456789ab"),
		Ciphertext: []byte("ciphertext"),
		Tag:        []byte("0123456789abcdef"),
	}
}

func TestPostgreSQLFieldRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewPostgreSQLFieldRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (application_id, field_name)`)).
		WithArgs("app-1", "ssn", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), "app-1", "ssn", testEnvelope(), now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLFieldRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewPostgreSQLFieldRepository(db)
		payload := `{"key_id":"v1","alg":"aes-gcm","nonce":"MDEyMzQ1Njc4OWFi",` +
			`"ciphertext":"Y2lwaGVydGV4dA==","tag":"MDEyMzQ1Njc4OWFiY2RlZg=="}`

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT envelope FROM application_sensitive_fields`)).
			WithArgs("app-1", "ssn").
			WillReturnRows(sqlmock.NewRows([]string{"envelope"}).AddRow([]byte(payload)))

		env, err := repo.Get(context.Background(), "app-1", "ssn")
		require.NoError(t, err)
		assert.Equal(t, testEnvelope(), env)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewPostgreSQLFieldRepository(db)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT envelope`)).WillReturnError(sql.ErrNoRows)

		_, err = repo.Get(context.Background(), "app-1", "ssn")
		assert.ErrorIs(t, err, ErrFieldNotFound)
	})
}

func TestMySQLFieldRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewMySQLFieldRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE envelope = VALUES(envelope)`)).
		WithArgs("app-1", "routingNumber", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Upsert(context.Background(), "app-1", "routingNumber", testEnvelope(), now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
