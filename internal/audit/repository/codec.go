// Package repository implements audit event persistence for PostgreSQL and MySQL.
package repository

import (
	"encoding/json"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	apperrors "github.com/allisson/extractvault/internal/errors"
)

const eventColumns = `id, event_type, actor_id, record_id, detail, key_id, signature, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// encodeDetail returns the JSON text of detail, or nil for a NULL column.
func encodeDetail(detail map[string]any) (any, error) {
	if detail == nil {
		return nil, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit event detail")
	}
	return string(b), nil
}

func scanEvent(s rowScanner) (*auditDomain.Event, error) {
	var event auditDomain.Event
	var recordID uuid.NullUUID
	var detail []byte

	err := s.Scan(
		&event.ID,
		&event.EventType,
		&event.ActorID,
		&recordID,
		&detail,
		&event.KeyID,
		&event.Signature,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan audit event")
	}

	if recordID.Valid {
		event.RecordID = recordID.UUID
	}
	if detail != nil {
		if err := json.Unmarshal(detail, &event.Detail); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit event detail")
		}
	}
	event.CreatedAt = event.CreatedAt.UTC()
	return &event, nil
}
