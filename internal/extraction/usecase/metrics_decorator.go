package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	"github.com/allisson/extractvault/internal/metrics"
)

// extractionUseCaseWithMetrics decorates ExtractionUseCase with metrics instrumentation.
type extractionUseCaseWithMetrics struct {
	next    ExtractionUseCase
	metrics metrics.BusinessMetrics
}

// NewExtractionUseCaseWithMetrics wraps an ExtractionUseCase with metrics recording.
func NewExtractionUseCaseWithMetrics(
	useCase ExtractionUseCase,
	m metrics.BusinessMetrics,
) ExtractionUseCase {
	return &extractionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (e *extractionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, "extraction", operation, status)
	e.metrics.RecordDuration(ctx, "extraction", operation, time.Since(start), status)
}

// Ingest records metrics for ingest operations.
func (e *extractionUseCaseWithMetrics) Ingest(
	ctx context.Context,
	input IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	record, err := e.next.Ingest(ctx, input)
	e.record(ctx, "ingest", start, err)
	return record, err
}

// ExtractAndIngest records metrics for provider-backed ingest operations.
func (e *extractionUseCaseWithMetrics) ExtractAndIngest(
	ctx context.Context,
	input IngestInput,
) (*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	record, err := e.next.ExtractAndIngest(ctx, input)
	e.record(ctx, "extract_and_ingest", start, err)
	return record, err
}

// Get records metrics for record retrieval.
func (e *extractionUseCaseWithMetrics) Get(
	ctx context.Context,
	id uuid.UUID,
) (*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	record, err := e.next.Get(ctx, id)
	e.record(ctx, "get", start, err)
	return record, err
}

// GetPublicView records metrics for public view retrieval.
func (e *extractionUseCaseWithMetrics) GetPublicView(
	ctx context.Context,
	id uuid.UUID,
) (map[extractionDomain.FieldName]string, error) {
	start := time.Now()
	view, err := e.next.GetPublicView(ctx, id)
	e.record(ctx, "get_public_view", start, err)
	return view, err
}

// ListByApplication records metrics for listing.
func (e *extractionUseCaseWithMetrics) ListByApplication(
	ctx context.Context,
	applicationID string,
	offset, limit int,
) ([]*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	records, err := e.next.ListByApplication(ctx, applicationID, offset, limit)
	e.record(ctx, "list", start, err)
	return records, err
}

// DecryptField records metrics for field decryption.
func (e *extractionUseCaseWithMetrics) DecryptField(
	ctx context.Context,
	id uuid.UUID,
	field extractionDomain.FieldName,
	auth extractionDomain.AuthContext,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.DecryptField(ctx, id, field, auth)
	e.record(ctx, "decrypt_field", start, err)
	return plaintext, err
}

// MarkReviewed records metrics for review transitions.
func (e *extractionUseCaseWithMetrics) MarkReviewed(
	ctx context.Context,
	id uuid.UUID,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	record, err := e.next.MarkReviewed(ctx, id, auth)
	e.record(ctx, "mark_reviewed", start, err)
	return record, err
}

// ApplyToApplication records metrics for apply transitions.
func (e *extractionUseCaseWithMetrics) ApplyToApplication(
	ctx context.Context,
	id uuid.UUID,
	targetApplicationID string,
	auth extractionDomain.AuthContext,
) (*extractionDomain.ExtractionRecord, error) {
	start := time.Now()
	record, err := e.next.ApplyToApplication(ctx, id, targetApplicationID, auth)
	e.record(ctx, "apply", start, err)
	return record, err
}

// sweeperUseCaseWithMetrics decorates SweeperUseCase with metrics instrumentation.
type sweeperUseCaseWithMetrics struct {
	next    SweeperUseCase
	metrics metrics.BusinessMetrics
	config  SweeperConfig
	logger  *slog.Logger
}

// NewSweeperUseCaseWithMetrics wraps a SweeperUseCase with metrics recording. The
// decorator runs its own loop so scheduled sweeps are measured too.
func NewSweeperUseCaseWithMetrics(
	useCase SweeperUseCase,
	m metrics.BusinessMetrics,
	config SweeperConfig,
	logger *slog.Logger,
) SweeperUseCase {
	return &sweeperUseCaseWithMetrics{next: useCase, metrics: m, config: config, logger: logger}
}

// Start runs the instrumented Sweep on every tick until ctx is cancelled.
func (s *sweeperUseCaseWithMetrics) Start(ctx context.Context) error {
	return runSweepLoop(ctx, s.config, s.logger, func() time.Time { return time.Now().UTC() }, s.Sweep)
}

// Sweep records metrics for sweep runs.
func (s *sweeperUseCaseWithMetrics) Sweep(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	count, err := s.next.Sweep(ctx, now)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "retention", "sweep", status)
	s.metrics.RecordDuration(ctx, "retention", "sweep", time.Since(start), status)
	s.metrics.RecordRecordsPurged(ctx, count)
	return count, err
}

// CountExpired records metrics for dry-run counts.
func (s *sweeperUseCaseWithMetrics) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	count, err := s.next.CountExpired(ctx, now)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "retention", "count_expired", status)
	s.metrics.RecordDuration(ctx, "retention", "count_expired", time.Since(start), status)
	return count, err
}
