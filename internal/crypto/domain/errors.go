package domain

import (
	"github.com/allisson/extractvault/internal/errors"
)

// Cryptographic operation error definitions.
//
// Decryption failures are deliberately opaque: the caller learns that the envelope could
// not be opened, never why, and the message never carries plaintext or key material.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a field key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an envelope failed authentication or could not be opened.
	// Treat it as tampering or misconfiguration, never as an empty value.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyNotFound indicates the envelope references a retired or unknown key version.
	ErrKeyNotFound = errors.New("field key not found")

	// ErrFieldKeysNotSet indicates FIELD_KEYS is empty.
	ErrFieldKeysNotSet = errors.New("FIELD_KEYS not set")

	// ErrActiveFieldKeyIDNotSet indicates ACTIVE_FIELD_KEY_ID is empty.
	ErrActiveFieldKeyIDNotSet = errors.New("ACTIVE_FIELD_KEY_ID not set")

	// ErrInvalidFieldKeysFormat indicates a FIELD_KEYS entry is not "id:base64".
	ErrInvalidFieldKeysFormat = errors.New("invalid FIELD_KEYS format")

	// ErrInvalidFieldKeyBase64 indicates a FIELD_KEYS value is not valid base64.
	ErrInvalidFieldKeyBase64 = errors.New("invalid field key base64")

	// ErrDuplicateFieldKeyID indicates the same key id appears twice in FIELD_KEYS.
	ErrDuplicateFieldKeyID = errors.New("duplicate field key id")

	// ErrActiveFieldKeyNotFound indicates the active key id is missing from the ring or retired.
	ErrActiveFieldKeyNotFound = errors.New("active field key not found")
)
