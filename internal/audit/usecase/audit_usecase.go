package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	auditService "github.com/allisson/extractvault/internal/audit/service"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

const verifyPageSize = 500

type auditUseCase struct {
	repo   Repository
	keys   KeySource
	signer auditService.Signer
	now    func() time.Time
}

// NewAuditUseCase creates an AuditUseCase signing with keys derived from the active field key.
func NewAuditUseCase(repo Repository, keys KeySource, signer auditService.Signer) AuditUseCase {
	return &auditUseCase{
		repo:   repo,
		keys:   keys,
		signer: signer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record signs and appends one event.
func (a *auditUseCase) Record(
	ctx context.Context,
	eventType extractionDomain.EventType,
	actorID string,
	recordID uuid.UUID,
	detail map[string]any,
) error {
	key, err := a.keys.Active()
	if err != nil {
		return apperrors.Wrap(err, "failed to get signing key")
	}

	event := &auditDomain.Event{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: string(eventType),
		ActorID:   actorID,
		RecordID:  recordID,
		Detail:    detail,
		KeyID:     key.ID,
		CreatedAt: a.now().Truncate(time.Microsecond),
	}

	event.Signature, err = a.signer.Sign(key.Key, event)
	if err != nil {
		return apperrors.Wrap(err, "failed to sign audit event")
	}

	if err := a.repo.Create(ctx, event); err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}
	return nil
}

// VerifyBatch pages through the window and checks each signature. Events signed with a
// key no longer in the ring count as invalid.
func (a *auditUseCase) VerifyBatch(
	ctx context.Context,
	start, end time.Time,
) (*auditDomain.VerificationReport, error) {
	if !end.After(start) {
		return nil, auditDomain.ErrInvalidTimeRange
	}

	report := &auditDomain.VerificationReport{InvalidEvents: make([]uuid.UUID, 0)}

	for offset := 0; ; offset += verifyPageSize {
		events, err := a.repo.List(ctx, start, end, offset, verifyPageSize)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to list audit events")
		}

		for _, event := range events {
			report.TotalChecked++
			if a.verify(event) {
				report.ValidCount++
				continue
			}
			report.InvalidCount++
			report.InvalidEvents = append(report.InvalidEvents, event.ID)
		}

		if len(events) < verifyPageSize {
			return report, nil
		}
	}
}

func (a *auditUseCase) verify(event *auditDomain.Event) bool {
	key, err := a.keys.Lookup(event.KeyID)
	if err != nil {
		return false
	}
	return a.signer.Verify(key.Key, event) == nil
}
