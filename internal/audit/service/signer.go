// Package service provides the audit event signer.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/allisson/extractvault/internal/audit/domain"
	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
)

const signingInfo = "audit-log-signing-v1"

// Signer computes and checks HMAC-SHA256 signatures over audit events.
type Signer interface {
	Sign(key []byte, event *auditDomain.Event) ([]byte, error)
	Verify(key []byte, event *auditDomain.Event) error
}

type hmacSigner struct{}

// NewSigner creates a Signer deriving its HMAC key from a field key with HKDF-SHA256, so
// the encryption key is never used directly as a MAC key.
func NewSigner() Signer {
	return &hmacSigner{}
}

func (s *hmacSigner) deriveSigningKey(key []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, key, nil, []byte(signingInfo))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize encodes id || record_id || event_type || actor_id || detail || created_at
// with length prefixes on the variable-length parts.
func (s *hmacSigner) canonicalize(event *auditDomain.Event) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = append(buf, event.ID[:]...)
	buf = append(buf, event.RecordID[:]...)
	buf = appendLengthPrefixed(buf, []byte(event.EventType))
	buf = appendLengthPrefixed(buf, []byte(event.ActorID))
	buf = appendLengthPrefixed(buf, []byte(event.KeyID))

	if event.Detail != nil {
		// encoding/json sorts map keys, which keeps the encoding deterministic.
		detail, err := json.Marshal(event.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal detail: %w", err)
		}
		buf = appendLengthPrefixed(buf, detail)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(event.CreatedAt.UnixMicro()))
	return buf, nil
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// Sign returns the 32-byte signature of event.
func (s *hmacSigner) Sign(key []byte, event *auditDomain.Event) ([]byte, error) {
	signingKey, err := s.deriveSigningKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	canonical, err := s.canonicalize(event)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Verify returns ErrSignatureInvalid when event.Signature does not match.
func (s *hmacSigner) Verify(key []byte, event *auditDomain.Event) error {
	expected, err := s.Sign(key, event)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(event.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}
	return nil
}
