// Package repository persists the downstream application's sensitive fields.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	"github.com/allisson/extractvault/internal/database"
	apperrors "github.com/allisson/extractvault/internal/errors"
)

// ErrFieldNotFound indicates the application has no value stored for the field.
var ErrFieldNotFound = apperrors.Wrap(apperrors.ErrNotFound, "application field not found")

// PostgreSQLFieldRepository stores one envelope per (application, field) in PostgreSQL.
type PostgreSQLFieldRepository struct {
	db *sql.DB
}

// NewPostgreSQLFieldRepository creates a new PostgreSQL application field repository.
func NewPostgreSQLFieldRepository(db *sql.DB) *PostgreSQLFieldRepository {
	return &PostgreSQLFieldRepository{db: db}
}

// Upsert writes the envelope, replacing any previous value for the same field.
func (p *PostgreSQLFieldRepository) Upsert(
	ctx context.Context,
	applicationID, field string,
	env cryptoDomain.Envelope,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	payload, err := json.Marshal(env)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal field envelope")
	}

	_, err = querier.ExecContext(
		ctx,
		`INSERT INTO application_sensitive_fields (application_id, field_name, envelope, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (application_id, field_name)
		 DO UPDATE SET envelope = EXCLUDED.envelope, updated_at = EXCLUDED.updated_at`,
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
func (p *PostgreSQLFieldRepository) Get(
	ctx context.Context,
	applicationID, field string,
) (cryptoDomain.Envelope, error) {
	querier := database.GetTx(ctx, p.db)

	var payload []byte
	err := querier.QueryRowContext(
		ctx,
		`SELECT envelope FROM application_sensitive_fields WHERE application_id = $1 AND field_name = $2`,
		applicationID,
		field,
	).Scan(&payload)
	return decodeEnvelope(payload, err)
}

func decodeEnvelope(payload []byte, err error) (cryptoDomain.Envelope, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cryptoDomain.Envelope{}, ErrFieldNotFound
		}
		return cryptoDomain.Envelope{}, apperrors.Wrap(err, "failed to get application field")
	}

	var env cryptoDomain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return cryptoDomain.Envelope{}, apperrors.Wrap(err, "failed to unmarshal field envelope")
	}
	return env, nil
}
