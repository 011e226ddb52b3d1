package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
)

// AuditVerifier checks audit event signatures. *auditUseCase.AuditUseCase satisfies it.
type AuditVerifier interface {
	VerifyBatch(ctx context.Context, start, end time.Time) (*auditDomain.VerificationReport, error)
}

// RunVerifyAuditEvents verifies the HMAC signature of every audit event created in
// [startDate, endDate). Returns an error when any event fails so scripts can alert.
func RunVerifyAuditEvents(
	ctx context.Context,
	verifier AuditVerifier,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	start, err := parseDate(startDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end, err := parseDate(endDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	logger.Info("verifying audit events",
		slog.Time("start_date", start),
		slog.Time("end_date", end),
	)

	report, err := verifier.VerifyBatch(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to verify audit events: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"total_checked":  report.TotalChecked,
			"valid_count":    report.ValidCount,
			"invalid_count":  report.InvalidCount,
			"invalid_events": report.InvalidEvents,
			"passed":         report.Passed(),
		}); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputVerifyText(writer, report, start, end)
	}

	logger.Info("verification completed",
		slog.Int64("total_checked", report.TotalChecked),
		slog.Int64("valid", report.ValidCount),
		slog.Int64("invalid", report.InvalidCount),
	)

	if !report.Passed() {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", report.InvalidCount)
	}

	return nil
}

func outputVerifyText(writer io.Writer, report *auditDomain.VerificationReport, start, end time.Time) {
	_, _ = fmt.Fprintf(writer, "Audit Event Integrity Verification\n")
	_, _ = fmt.Fprintf(writer, "==================================\n\n")
	_, _ = fmt.Fprintf(writer,
		"Time Range: %s to %s\n\n",
		start.Format(time.DateTime),
		end.Format(time.DateTime),
	)

	_, _ = fmt.Fprintf(writer, "Total Checked:  %d\n", report.TotalChecked)
	_, _ = fmt.Fprintf(writer, "Valid:          %d\n", report.ValidCount)
	_, _ = fmt.Fprintf(writer, "Invalid:        %d\n\n", report.InvalidCount)

	switch {
	case !report.Passed():
		_, _ = fmt.Fprintf(writer, "WARNING: %d event(s) failed integrity check!\n\n", report.InvalidCount)
		_, _ = fmt.Fprintf(writer, "Invalid Event IDs:\n")
		for _, id := range report.InvalidEvents {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case report.TotalChecked == 0:
		_, _ = fmt.Fprintf(writer, "Status: No events found in specified time range\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
}
