// Package service writes decrypted extraction values into the downstream application's
// sensitive-field store, re-sealed under the application's own associated data.
package service

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// Repository stores sealed application fields.
type Repository interface {
	Upsert(ctx context.Context, applicationID, field string, env cryptoDomain.Envelope, updatedAt time.Time) error
	Get(ctx context.Context, applicationID, field string) (cryptoDomain.Envelope, error)
}

// Cipher seals and opens values. *cryptoService.FieldCipher satisfies it.
type Cipher interface {
	Encrypt(plaintext, aad []byte) (cryptoDomain.Envelope, error)
	Decrypt(env cryptoDomain.Envelope, aad []byte) ([]byte, error)
}

// FieldStore implements the extraction SensitiveFieldWriter.
type FieldStore struct {
	repo   Repository
	cipher Cipher
	now    func() time.Time
}

// NewFieldStore creates a FieldStore.
func NewFieldStore(repo Repository, cipher Cipher) *FieldStore {
	return &FieldStore{
		repo:   repo,
		cipher: cipher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func fieldAAD(applicationID string, field extractionDomain.FieldName) []byte {
	return []byte(applicationID + "\x00" + string(field))
}

// WriteSensitiveField seals plaintext and upserts it. Writing the same field twice leaves
// one value.
func (f *FieldStore) WriteSensitiveField(
	ctx context.Context,
	applicationID string,
	field extractionDomain.FieldName,
	plaintext []byte,
) error {
	env, err := f.cipher.Encrypt(plaintext, fieldAAD(applicationID, field))
	if err != nil {
		return apperrors.Wrap(err, "failed to seal application field")
	}
	return f.repo.Upsert(ctx, applicationID, string(field), env, f.now())
}

// readSensitiveField opens a stored value. Callers must zero the result.
func (f *FieldStore) readSensitiveField(
	ctx context.Context,
	applicationID string,
	field extractionDomain.FieldName,
) ([]byte, error) {
	env, err := f.repo.Get(ctx, applicationID, string(field))
	if err != nil {
		return nil, err
	}
	return f.cipher.Decrypt(env, fieldAAD(applicationID, field))
}
