package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// auditEmitter records audit events on a best-effort basis. A failed write is logged as
// a warning and never fails the operation that produced the event.
type auditEmitter struct {
	auditor Auditor
	logger  *slog.Logger
}

func (a auditEmitter) emit(
	ctx context.Context,
	eventType extractionDomain.EventType,
	actorID string,
	recordID uuid.UUID,
	detail map[string]any,
) {
	if err := a.auditor.Record(ctx, eventType, actorID, recordID, detail); err != nil {
		a.logger.WarnContext(ctx, "failed to record audit event",
			slog.String("event_type", string(eventType)),
			slog.String("record_id", recordID.String()),
			slog.Any("error", err),
		)
	}
}

func fieldNames(fields []extractionDomain.FieldName) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
