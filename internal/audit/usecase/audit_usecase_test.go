package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	auditService "github.com/allisson/extractvault/internal/audit/service"
	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

type memoryRepository struct {
	mu     sync.Mutex
	events []*auditDomain.Event
	err    error
}

func (m *memoryRepository) Create(_ context.Context, event *auditDomain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryRepository) List(
	_ context.Context,
	start, end time.Time,
	offset, limit int,
) ([]*auditDomain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*auditDomain.Event, 0)
	for _, e := range m.events {
		if !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			matched = append(matched, e)
		}
	}
	if offset >= len(matched) {
		return []*auditDomain.Event{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func newKeyRing(t *testing.T, active string, ids ...string) *cryptoDomain.KeyRing {
	t.Helper()

	keys := make([]*cryptoDomain.FieldKey, 0, len(ids))
	for _, id := range ids {
		key := make([]byte, cryptoDomain.KeySize)
		for j := range key {
			key[j] = id[len(id)-1] + byte(j)
		}
		keys = append(keys, &cryptoDomain.FieldKey{ID: id, Algorithm: cryptoDomain.AESGCM, Key: key})
	}

	ring, err := cryptoDomain.NewKeyRing(keys, active)
	require.NoError(t, err)
	return ring
}

func TestAuditUseCase_Record(t *testing.T) {
	repo := &memoryRepository{}
	uc := NewAuditUseCase(repo, newKeyRing(t, "v1", "v1"), auditService.NewSigner())
	recordID := uuid.Must(uuid.NewV7())

	err := uc.Record(context.Background(), extractionDomain.EventDataDecrypted, "reviewer", recordID,
		map[string]any{"field": "ssn"})
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, "DATA_DECRYPTED", event.EventType)
	assert.Equal(t, "reviewer", event.ActorID)
	assert.Equal(t, recordID, event.RecordID)
	assert.Equal(t, "v1", event.KeyID)
	assert.Len(t, event.Signature, 32)
}

func TestAuditUseCase_Record_RepositoryError(t *testing.T) {
	repo := &memoryRepository{err: errors.New("database down")}
	uc := NewAuditUseCase(repo, newKeyRing(t, "v1", "v1"), auditService.NewSigner())

	err := uc.Record(context.Background(), extractionDomain.EventExtractionFailed, "user", uuid.Nil, nil)
	assert.Error(t, err)
}

func TestAuditUseCase_VerifyBatch(t *testing.T) {
	repo := &memoryRepository{}
	ring := newKeyRing(t, "v1", "v1")
	uc := NewAuditUseCase(repo, ring, auditService.NewSigner())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, uc.Record(ctx, extractionDomain.EventExtractionReviewed, "reviewer",
			uuid.Must(uuid.NewV7()), nil))
	}
	repo.events[1].ActorID = "attacker"

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	report, err := uc.VerifyBatch(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.TotalChecked)
	assert.Equal(t, int64(2), report.ValidCount)
	assert.Equal(t, int64(1), report.InvalidCount)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, report.InvalidEvents)
	assert.False(t, report.Passed())
}

func TestAuditUseCase_VerifyBatch_AfterKeyRotation(t *testing.T) {
	repo := &memoryRepository{}
	ctx := context.Background()

	before := NewAuditUseCase(repo, newKeyRing(t, "v1", "v1"), auditService.NewSigner())
	require.NoError(t, before.Record(ctx, extractionDomain.EventExtractionExpired,
		extractionDomain.SystemActor, uuid.Must(uuid.NewV7()), nil))

	rotated := NewAuditUseCase(repo, newKeyRing(t, "v2", "v1", "v2"), auditService.NewSigner())
	require.NoError(t, rotated.Record(ctx, extractionDomain.EventExtractionExpired,
		extractionDomain.SystemActor, uuid.Must(uuid.NewV7()), nil))

	report, err := rotated.VerifyBatch(ctx, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Equal(t, int64(2), report.ValidCount)

	retired := NewAuditUseCase(repo, newKeyRing(t, "v2", "v2"), auditService.NewSigner())
	report, err = retired.VerifyBatch(ctx, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.InvalidCount)
}

func TestAuditUseCase_VerifyBatch_InvalidRange(t *testing.T) {
	uc := NewAuditUseCase(&memoryRepository{}, newKeyRing(t, "v1", "v1"), auditService.NewSigner())
	now := time.Now().UTC()

	_, err := uc.VerifyBatch(context.Background(), now, now)
	assert.ErrorIs(t, err, auditDomain.ErrInvalidTimeRange)
}
