package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	"github.com/allisson/extractvault/internal/database"
	apperrors "github.com/allisson/extractvault/internal/errors"
)

// MySQLAuditEventRepository implements audit event persistence for MySQL.
// Uses BINARY(16) for UUID storage.
type MySQLAuditEventRepository struct {
	db *sql.DB
}

// NewMySQLAuditEventRepository creates a new MySQL audit event repository.
func NewMySQLAuditEventRepository(db *sql.DB) *MySQLAuditEventRepository {
	return &MySQLAuditEventRepository{db: db}
}

// Create appends an event. A nil RecordID and nil Detail are stored as NULL.
func (m *MySQLAuditEventRepository) Create(ctx context.Context, event *auditDomain.Event) error {
	querier := database.GetTx(ctx, m.db)

	detail, err := encodeDetail(event.Detail)
	if err != nil {
		return err
	}

	id, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit event id")
	}

	var recordID any
	if event.RecordID != uuid.Nil {
		b, err := event.RecordID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal record id")
		}
		recordID = b
	}

	_, err = querier.ExecContext(
		ctx,
		`INSERT INTO audit_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		event.EventType,
		event.ActorID,
		recordID,
		detail,
		event.KeyID,
		event.Signature,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}
	return nil
}

// List returns events created in [start, end), oldest first, with pagination.
func (m *MySQLAuditEventRepository) List(
	ctx context.Context,
	start, end time.Time,
	offset, limit int,
) ([]*auditDomain.Event, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM audit_events
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at, id
		 LIMIT ? OFFSET ?`,
		start,
		end,
		limit,
		offset,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit events")
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]*auditDomain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit events")
	}
	return events, nil
}
