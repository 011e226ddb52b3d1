// Package elevation turns bearer tokens into the extraction AuthContext.
//
// Tokens are HS256 JWTs issued by the session system. The subject is the actor id and
// the optional elevated_until claim (Unix seconds) marks a stepped-up session. The
// elevation window is capped at iat + max age whatever the claim says.
package elevation

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

var (
	// ErrInvalidToken indicates a missing, malformed, expired or forged token.
	ErrInvalidToken = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid token")

	// ErrSecretNotSet indicates the provider was built without a signing secret.
	ErrSecretNotSet = errors.New("AUTH_JWT_SECRET is required")
)

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	ElevatedUntil int64 `json:"elevated_until,omitempty"`
}

// Provider verifies tokens and issues them for tooling and tests.
type Provider struct {
	secret []byte
	maxAge time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewProvider creates a Provider. maxAge bounds every elevation window.
func NewProvider(secret string, maxAge time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, ErrSecretNotSet
	}
	return newProvider([]byte(secret), maxAge, time.Now), nil
}

func newProvider(secret []byte, maxAge time.Duration, now func() time.Time) *Provider {
	return &Provider{
		secret: secret,
		maxAge: maxAge,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
		now: now,
	}
}

// Verify validates token and returns the caller's AuthContext.
func (p *Provider) Verify(token string) (extractionDomain.AuthContext, error) {
	var claims Claims
	_, err := p.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return extractionDomain.AuthContext{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return extractionDomain.AuthContext{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	auth := extractionDomain.AuthContext{ActorID: claims.Subject}
	if claims.ElevatedUntil > 0 && claims.IssuedAt != nil {
		until := time.Unix(claims.ElevatedUntil, 0).UTC()
		limit := claims.IssuedAt.Add(p.maxAge).UTC()
		if until.After(limit) {
			until = limit
		}
		auth.ElevatedUntil = until
	}
	return auth, nil
}

// Issue signs a token for actorID valid for ttl. A positive elevatedFor marks the
// session as elevated for that long.
func (p *Provider) Issue(actorID string, ttl, elevatedFor time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if elevatedFor > 0 {
		claims.ElevatedUntil = now.Add(elevatedFor).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
