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

// PostgreSQLAuditEventRepository implements audit event persistence for PostgreSQL.
type PostgreSQLAuditEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditEventRepository creates a new PostgreSQL audit event repository.
func NewPostgreSQLAuditEventRepository(db *sql.DB) *PostgreSQLAuditEventRepository {
	return &PostgreSQLAuditEventRepository{db: db}
}

// Create appends an event. A nil RecordID and nil Detail are stored as NULL.
func (p *PostgreSQLAuditEventRepository) Create(ctx context.Context, event *auditDomain.Event) error {
	querier := database.GetTx(ctx, p.db)

	detail, err := encodeDetail(event.Detail)
	if err != nil {
		return err
	}

	var recordID any
	if event.RecordID != uuid.Nil {
		recordID = event.RecordID
	}

	_, err = querier.ExecContext(
		ctx,
		`INSERT INTO audit_events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID,
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
func (p *PostgreSQLAuditEventRepository) List(
	ctx context.Context,
	start, end time.Time,
	offset, limit int,
) ([]*auditDomain.Event, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT `+eventColumns+` FROM audit_events
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at, id
		 LIMIT $3 OFFSET $4`,
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
