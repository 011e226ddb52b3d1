package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
)

// RunSweepExpired runs one retention sweep now. In dry-run mode it only counts the
// unreviewed records past their retention window.
func RunSweepExpired(
	ctx context.Context,
	sweeper extractionUseCase.SweeperUseCase,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	now := time.Now().UTC()

	logger.Info("sweeping expired extraction records",
		slog.Time("now", now),
		slog.Bool("dry_run", dryRun),
	)

	var (
		count int64
		err   error
	)
	if dryRun {
		count, err = sweeper.CountExpired(ctx, now)
	} else {
		count, err = sweeper.Sweep(ctx, now)
	}
	if err != nil {
		if !dryRun && count > 0 {
			logger.Warn("sweep stopped early", slog.Int64("deleted", count))
		}
		return fmt.Errorf("failed to sweep expired records: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"count":    count,
			"dry_run":  dryRun,
			"swept_at": now.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	} else {
		outputSweepText(writer, count, dryRun)
	}

	logger.Info("sweep completed",
		slog.Int64("count", count),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

func outputSweepText(writer io.Writer, count int64, dryRun bool) {
	if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d expired extraction record(s)\n", count)
		return
	}
	_, _ = fmt.Fprintf(writer, "Successfully deleted %d expired extraction record(s)\n", count)
}
