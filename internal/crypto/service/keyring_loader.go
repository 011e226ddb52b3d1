package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
)

// KeyRingOptions describes where the key-version table comes from.
type KeyRingOptions struct {
	// FieldKeys is the comma-separated "id:base64" list.
	FieldKeys string
	// ActiveKeyID is the version used for new encryptions.
	ActiveKeyID string
	// RetiredKeyIDs are versions excluded from the ring.
	RetiredKeyIDs []string
	// Algorithm is applied to every loaded version.
	Algorithm string
	// KMSKeyURI, when set, means every FieldKeys value is KMS ciphertext.
	KMSKeyURI string
}

// LoadKeyRing parses the key-version table, unwraps each key through the KMS when a key
// URI is configured, drops retired versions and returns the populated ring.
func LoadKeyRing(
	ctx context.Context,
	opts KeyRingOptions,
	kmsService KMSService,
	logger *slog.Logger,
) (*cryptoDomain.KeyRing, error) {
	if strings.TrimSpace(opts.FieldKeys) == "" {
		return nil, cryptoDomain.ErrFieldKeysNotSet
	}
	if opts.ActiveKeyID == "" {
		return nil, cryptoDomain.ErrActiveFieldKeyIDNotSet
	}
	if slices.Contains(opts.RetiredKeyIDs, opts.ActiveKeyID) {
		return nil, fmt.Errorf("%w: %s is retired", cryptoDomain.ErrActiveFieldKeyNotFound, opts.ActiveKeyID)
	}

	alg, err := cryptoDomain.ParseAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	var keeper cryptoDomain.KMSKeeper
	if opts.KMSKeyURI != "" {
		keeper, err = kmsService.OpenKeeper(ctx, opts.KMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()
	}

	var keys []*cryptoDomain.FieldKey
	zeroAll := func() {
		for _, k := range keys {
			cryptoDomain.Zero(k.Key)
		}
	}

	for part := range strings.SplitSeq(opts.FieldKeys, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, encoded, ok := strings.Cut(part, ":")
		if !ok || id == "" || encoded == "" {
			zeroAll()
			return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrInvalidFieldKeysFormat, part)
		}

		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			zeroAll()
			return nil, fmt.Errorf("%w for %s: %w", cryptoDomain.ErrInvalidFieldKeyBase64, id, err)
		}

		if slices.Contains(opts.RetiredKeyIDs, id) {
			cryptoDomain.Zero(raw)
			logger.Info("skipping retired field key", slog.String("key_id", id))
			continue
		}

		key := raw
		if keeper != nil {
			key, err = keeper.Decrypt(ctx, raw)
			if err != nil {
				zeroAll()
				return nil, fmt.Errorf("failed to unwrap field key %s: %w", id, err)
			}
		}

		keys = append(keys, &cryptoDomain.FieldKey{ID: id, Algorithm: alg, Key: key})
	}

	ring, err := cryptoDomain.NewKeyRing(keys, opts.ActiveKeyID)
	if err != nil {
		zeroAll()
		return nil, err
	}

	logger.Info("field key ring loaded",
		slog.String("active_key_id", ring.ActiveKeyID()),
		slog.Int("key_count", len(ring.IDs())),
		slog.String("algorithm", string(alg)),
	)

	return ring, nil
}

// GenerateFieldKey creates a fresh 32-byte field key and returns its "id:base64" table
// entry. When keeper is non-nil the key is wrapped by the KMS before encoding.
func GenerateFieldKey(ctx context.Context, keyID string, keeper cryptoDomain.KMSKeeper) (string, error) {
	key, err := randomKey()
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(key)

	material := key
	if keeper != nil {
		material, err = keeper.Encrypt(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to wrap field key with KMS: %w", err)
		}
	}

	return fmt.Sprintf("%s:%s", keyID, base64.StdEncoding.EncodeToString(material)), nil
}
