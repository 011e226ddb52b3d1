package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	cryptoService "github.com/allisson/extractvault/internal/crypto/service"
)

// RunCreateFieldKey generates a 32-byte field key and prints the FIELD_KEYS entry for it.
// With a KMS key URI the key is wrapped by the KMS and the entry holds the ciphertext.
// Without one the raw key is printed, which is only acceptable for local development.
//
// existingKeys, when set, is the current FIELD_KEYS value; the new entry is appended so
// records sealed under older versions stay readable.
func RunCreateFieldKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI, existingKeys string,
) error {
	if (kmsProvider == "") != (kmsKeyURI == "") {
		return fmt.Errorf("--kms-provider and --kms-key-uri must be set together")
	}

	if keyID == "" {
		keyID = fmt.Sprintf("field-key-%s", time.Now().UTC().Format("2006-01-02"))
	}

	var keeper cryptoDomain.KMSKeeper
	if kmsKeyURI != "" {
		var err error
		keeper, err = kmsService.OpenKeeper(ctx, kmsKeyURI)
		if err != nil {
			return fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()
	}

	entry, err := cryptoService.GenerateFieldKey(ctx, keyID, keeper)
	if err != nil {
		return err
	}

	fieldKeys := entry
	if existingKeys != "" {
		fieldKeys = existingKeys + "," + entry
	}

	logger.Info("field key generated",
		slog.String("key_id", keyID),
		slog.Bool("kms_wrapped", keeper != nil),
	)

	_, _ = fmt.Fprintln(writer, "# Field Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if keeper != nil {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	} else {
		_, _ = fmt.Fprintln(writer, "# WARNING: key is not KMS-wrapped; do not use in production")
	}
	_, _ = fmt.Fprintf(writer, "FIELD_KEYS=\"%s\"\n", fieldKeys)
	_, _ = fmt.Fprintf(writer, "ACTIVE_FIELD_KEY_ID=\"%s\"\n", keyID)

	return nil
}
