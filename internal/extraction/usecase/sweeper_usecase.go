package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/extractvault/internal/database"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// SweeperConfig holds retention sweeper configuration.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

type sweeperUseCase struct {
	config    SweeperConfig
	txManager database.TxManager
	repo      Repository
	audit     auditEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeperUseCase creates the retention sweeper.
func NewSweeperUseCase(
	config SweeperConfig,
	txManager database.TxManager,
	repo Repository,
	auditor Auditor,
	logger *slog.Logger,
) SweeperUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	return &sweeperUseCase{
		config:    config,
		txManager: txManager,
		repo:      repo,
		audit:     auditEmitter{auditor: auditor, logger: logger},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a sweep on every tick until ctx is cancelled.
func (s *sweeperUseCase) Start(ctx context.Context) error {
	return runSweepLoop(ctx, s.config, s.logger, s.now, s.Sweep)
}

// runSweepLoop drives sweep on a ticker until ctx is cancelled.
func runSweepLoop(
	ctx context.Context,
	config SweeperConfig,
	logger *slog.Logger,
	now func() time.Time,
	sweep func(ctx context.Context, now time.Time) (int64, error),
) error {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}

	logger.Info("starting retention sweeper",
		slog.Duration("interval", config.Interval),
		slog.Int("batch_size", config.BatchSize),
	)

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping retention sweeper")
			return ctx.Err()
		case <-ticker.C:
			count, err := sweep(ctx, now())
			if err != nil {
				logger.Error("retention sweep failed",
					slog.Int64("deleted", count),
					slog.Any("error", err),
				)
				continue
			}
			logger.Info("retention sweep finished", slog.Int64("deleted", count))
		}
	}
}

// Sweep deletes expired EXTRACTED records batch by batch. Every deletion is its own
// conditional transaction, so the run can stop between records at any point and a
// concurrent sweep, review or apply never double-counts or resurrects a record.
func (s *sweeperUseCase) Sweep(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var ids []uuid.UUID
		err := s.txManager.WithRetry(ctx, func(ctx context.Context) error {
			var err error
			ids, err = s.repo.ListExpiredIDs(ctx, now, s.config.BatchSize)
			return err
		})
		if err != nil {
			return total, err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			deleted, err := s.deleteOne(ctx, id, now)
			if err != nil {
				return total, err
			}
			if !deleted {
				continue
			}

			total++
			s.audit.emit(ctx, extractionDomain.EventExtractionExpired, extractionDomain.SystemActor, id,
				map[string]any{"swept_at": now.Format(time.RFC3339)},
			)
		}

		if len(ids) < s.config.BatchSize {
			return total, nil
		}
	}
}

func (s *sweeperUseCase) deleteOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var deleted bool
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.DeleteExpired(ctx, id, now)
		return err
	})
	return deleted, err
}

// CountExpired reports how many records a sweep at now would delete.
func (s *sweeperUseCase) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.txManager.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.repo.CountExpired(ctx, now)
		return err
	})
	return count, err
}
