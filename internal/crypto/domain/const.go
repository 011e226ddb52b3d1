package domain

// Algorithm represents the AEAD algorithm used to seal field envelopes.
//
// Both algorithms use 256-bit keys, 12-byte nonces and 16-byte authentication tags,
// so envelopes produced by either have the same shape.
type Algorithm string

const (
	// AESGCM represents AES-256-GCM. Preferred on CPUs with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents ChaCha20-Poly1305. Preferred where AES is not hardware accelerated.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the required length in bytes of every field key.
	KeySize = 32

	// TagSize is the length in bytes of the AEAD authentication tag.
	TagSize = 16
)

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
