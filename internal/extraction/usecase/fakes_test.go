package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	cryptoService "github.com/allisson/extractvault/internal/crypto/service"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	extractionService "github.com/allisson/extractvault/internal/extraction/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type txKey struct{}

// serialTxManager runs transactions one at a time, standing in for row locks.
type serialTxManager struct {
	mu sync.Mutex
}

func (m *serialTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (m *serialTxManager) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryRepository is an in-memory Repository. Records are copied on the way in and out.
type memoryRepository struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*extractionDomain.ExtractionRecord
	dedup       map[string]*uuid.UUID
	createCalls int
	getErr      error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		records: make(map[uuid.UUID]*extractionDomain.ExtractionRecord),
		dedup:   make(map[string]*uuid.UUID),
	}
}

func dedupKey(documentID, contentHash string) string {
	return documentID + "|" + contentHash
}

func cloneRecord(r *extractionDomain.ExtractionRecord) *extractionDomain.ExtractionRecord {
	c := *r
	c.PublicView = make(map[extractionDomain.FieldName]string, len(r.PublicView))
	for k, v := range r.PublicView {
		c.PublicView[k] = v
	}
	c.EncryptedFields = make(map[extractionDomain.FieldName]cryptoDomain.Envelope, len(r.EncryptedFields))
	for k, v := range r.EncryptedFields {
		c.EncryptedFields[k] = v
	}
	return &c
}

func (m *memoryRepository) Create(_ context.Context, record *extractionDomain.ExtractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.records[record.ID] = cloneRecord(record)
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[id]
	if !ok {
		return nil, extractionDomain.ErrRecordNotFound
	}
	return cloneRecord(r), nil
}

func (m *memoryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*extractionDomain.ExtractionRecord, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepository) UpdateReviewState(_ context.Context, record *extractionDomain.ExtractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; !ok {
		return extractionDomain.ErrRecordNotFound
	}
	m.records[record.ID] = cloneRecord(record)
	return nil
}

func (m *memoryRepository) ListByApplication(
	_ context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*extractionDomain.ExtractionRecord
	for _, r := range m.records {
		if r.ApplicationID == applicationID {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []*extractionDomain.ExtractionRecord{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepository) LockDedupKey(_ context.Context, documentID, contentHash string) (*uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dedupKey(documentID, contentHash)
	if _, ok := m.dedup[key]; !ok {
		m.dedup[key] = nil
	}
	return m.dedup[key], nil
}

func (m *memoryRepository) BindDedupKey(_ context.Context, documentID, contentHash string, recordID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := recordID
	m.dedup[dedupKey(documentID, contentHash)] = &id
	return nil
}

func (m *memoryRepository) ListExpiredIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range m.records {
		if r.IsSweepable(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memoryRepository) DeleteExpired(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || !r.IsSweepable(now) {
		return false, nil
	}
	delete(m.records, id)
	for k, bound := range m.dedup {
		if bound != nil && *bound == id {
			delete(m.dedup, k)
		}
	}
	return true, nil
}

func (m *memoryRepository) CountExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.IsSweepable(now) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type auditEntry struct {
	EventType extractionDomain.EventType
	ActorID   string
	RecordID  uuid.UUID
	Detail    map[string]any
}

// recordingAuditor captures audit events and can be told to fail.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
	fail    bool
}

func (a *recordingAuditor) Record(
	_ context.Context,
	eventType extractionDomain.EventType,
	actorID string,
	recordID uuid.UUID,
	detail map[string]any,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("audit sink down")
	}
	a.entries = append(a.entries, auditEntry{eventType, actorID, recordID, detail})
	return nil
}

func (a *recordingAuditor) byType(eventType extractionDomain.EventType) []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []auditEntry
	for _, e := range a.entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memoryFieldWriter is the downstream application's sensitive-field store.
type memoryFieldWriter struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (w *memoryFieldWriter) WriteSensitiveField(
	_ context.Context,
	applicationID string,
	field extractionDomain.FieldName,
	plaintext []byte,
) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.values == nil {
		w.values = make(map[string]string)
	}
	w.values[applicationID+"/"+string(field)] = string(plaintext)
	return nil
}

type stubExtractor struct {
	result *extractionDomain.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(context.Context, []byte) (*extractionDomain.ExtractionResult, error) {
	return s.result, s.err
}

type fixture struct {
	uc        *extractionUseCase
	repo      *memoryRepository
	auditor   *recordingAuditor
	writer    *memoryFieldWriter
	extractor *stubExtractor
	cipher    *cryptoService.FieldCipher
	clock     *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testKeyRing() *cryptoDomain.KeyRing {
	key := make([]byte, cryptoDomain.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	ring, err := cryptoDomain.NewKeyRing([]*cryptoDomain.FieldKey{
		{ID: "test-v1", Algorithm: cryptoDomain.AESGCM, Key: key},
	}, "test-v1")
	if err != nil {
		panic(err)
	}
	return ring
}

func newFixture() *fixture {
	repo := newMemoryRepository()
	auditor := &recordingAuditor{}
	writer := &memoryFieldWriter{}
	extractor := &stubExtractor{}
	cipher := cryptoService.NewFieldCipher(testKeyRing(), cryptoService.NewAEADManager())
	clock := &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}

	uc := NewExtractionUseCase(
		Config{RetentionWindow: extractionDomain.DefaultRetentionWindow},
		&serialTxManager{},
		repo,
		cipher,
		extractionService.NewFingerprinter(),
		extractor,
		writer,
		auditor,
		discardLogger(),
	).(*extractionUseCase)
	uc.now = clock.Now

	return &fixture{
		uc:        uc,
		repo:      repo,
		auditor:   auditor,
		writer:    writer,
		extractor: extractor,
		cipher:    cipher,
		clock:     clock,
	}
}

func elevated(clock *fakeClock, actor string) extractionDomain.AuthContext {
	return extractionDomain.AuthContext{ActorID: actor, ElevatedUntil: clock.Now().Add(5 * time.Minute)}
}
