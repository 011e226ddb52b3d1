package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
)

// FieldCipher seals and opens individual field values with the key ring.
//
// The AAD binds an envelope to its owning record and field, so an envelope copied onto a
// different record or field fails authentication.
type FieldCipher struct {
	ring        *cryptoDomain.KeyRing
	aeadManager AEADManager
}

// NewFieldCipher creates a FieldCipher over the given key ring.
func NewFieldCipher(ring *cryptoDomain.KeyRing, aeadManager AEADManager) *FieldCipher {
	return &FieldCipher{ring: ring, aeadManager: aeadManager}
}

// ActiveKeyID returns the key version new envelopes are sealed with.
func (f *FieldCipher) ActiveKeyID() string {
	return f.ring.ActiveKeyID()
}

// Encrypt seals plaintext with the active key version.
func (f *FieldCipher) Encrypt(plaintext, aad []byte) (cryptoDomain.Envelope, error) {
	return f.EncryptWithKey(f.ring.ActiveKeyID(), plaintext, aad)
}

// EncryptWithKey seals plaintext with a specific key version.
func (f *FieldCipher) EncryptWithKey(keyID string, plaintext, aad []byte) (cryptoDomain.Envelope, error) {
	key, err := f.ring.Lookup(keyID)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}

	cipher, err := f.aeadManager.CreateCipher(key.Key, key.Algorithm)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}

	sealed, nonce, err := cipher.Encrypt(plaintext, aad)
	if err != nil {
		return cryptoDomain.Envelope{}, fmt.Errorf("failed to seal field: %w", err)
	}

	split := len(sealed) - cryptoDomain.TagSize
	return cryptoDomain.Envelope{
		KeyID:      key.ID,
		Algorithm:  key.Algorithm,
		Nonce:      nonce,
		Ciphertext: sealed[:split:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens an envelope. It returns ErrKeyNotFound when the envelope's key version is
// not in the ring and ErrDecryptionFailed when the envelope is empty, names an unknown
// algorithm or fails authentication. Callers own the
// returned slice and should Zero it once consumed.
func (f *FieldCipher) Decrypt(env cryptoDomain.Envelope, aad []byte) ([]byte, error) {
	key, err := f.ring.Lookup(env.KeyID)
	if err != nil {
		return nil, err
	}

	if env.IsZero() || len(env.Tag) != cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	alg := env.Algorithm
	if alg == "" {
		alg = key.Algorithm
	}

	// The algorithm is read from stored data, so an unknown one is tampering.
	cipher, err := f.aeadManager.CreateCipher(key.Key, alg)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	return cipher.Decrypt(sealed, env.Nonce, aad)
}
