package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	"github.com/allisson/extractvault/internal/database"
	apperrors "github.com/allisson/extractvault/internal/errors"
)

// MySQLFieldRepository stores one envelope per (application, field) in MySQL.
type MySQLFieldRepository struct {
	db *sql.DB
}

// NewMySQLFieldRepository creates a new MySQL application field repository.
func NewMySQLFieldRepository(db *sql.DB) *MySQLFieldRepository {
	return &MySQLFieldRepository{db: db}
}

// Upsert writes the envelope, replacing any previous value for the same field.
func (m *MySQLFieldRepository) Upsert(
	ctx context.Context,
	applicationID, field string,
	env cryptoDomain.Envelope,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	payload, err := json.Marshal(env)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal field envelope")
	}

	_, err = querier.ExecContext(
		ctx,
		`INSERT INTO application_sensitive_fields (application_id, field_name, envelope, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE envelope = VALUES(envelope), updated_at = VALUES(updated_at)`,
		applicationID,
		field,
		string(payload),
		updatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert application field")
	}
	return nil
}

// Get returns the stored envelope for a field.
func (m *MySQLFieldRepository) Get(
	ctx context.Context,
	applicationID, field string,
) (cryptoDomain.Envelope, error) {
	querier := database.GetTx(ctx, m.db)

	var payload []byte
	err := querier.QueryRowContext(
		ctx,
		`SELECT envelope FROM application_sensitive_fields WHERE application_id = ? AND field_name = ?`,
		applicationID,
		field,
	).Scan(&payload)
	return decodeEnvelope(payload, err)
}
