package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// TokenIssuer signs bearer tokens. *elevation.Provider satisfies it.
type TokenIssuer interface {
	Issue(actorID string, ttl, elevatedFor time.Duration) (string, error)
}

// RunIssueToken prints a bearer token for actorID, elevated for elevatedFor when positive.
// Intended for operators and smoke tests; production sessions come from the session system.
func RunIssueToken(
	issuer TokenIssuer,
	logger *slog.Logger,
	writer io.Writer,
	actorID string,
	ttl, elevatedFor time.Duration,
	format string,
) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("actor id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got: %s", ttl)
	}
	if elevatedFor > ttl {
		return fmt.Errorf("elevation window %s exceeds token ttl %s", elevatedFor, ttl)
	}

	token, err := issuer.Issue(actorID, ttl, elevatedFor)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	logger.Info("token issued",
		slog.String("actor_id", actorID),
		slog.Duration("ttl", ttl),
		slog.Bool("elevated", elevatedFor > 0),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"actor_id":   actorID,
			"token":      token,
			"expires_in": int64(ttl.Seconds()),
			"elevated":   elevatedFor > 0,
		})
	}

	_, _ = fmt.Fprintln(writer, token)
	return nil
}
