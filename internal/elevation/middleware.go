package elevation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
	"github.com/allisson/extractvault/internal/httputil"
)

type authKey struct{}

// WithAuthContext stores auth in ctx.
func WithAuthContext(ctx context.Context, auth extractionDomain.AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, auth)
}

// GetAuthContext returns the AuthContext stored by the middleware.
func GetAuthContext(ctx context.Context) (extractionDomain.AuthContext, bool) {
	auth, ok := ctx.Value(authKey{}).(extractionDomain.AuthContext)
	return auth, ok
}

// AuthenticationMiddleware reads "Authorization: Bearer <jwt>" (case-insensitive scheme),
// verifies it and stores the resulting AuthContext in the request context. Any failure
// answers 401.
func AuthenticationMiddleware(provider *Provider, logger *slog.Logger) gin.HandlerFunc {
	const bearerPrefix = "bearer "

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		auth, err := provider.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			logger.Debug("authentication failed", slog.Any("error", err))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithAuthContext(c.Request.Context(), auth))
		c.Next()
	}
}
