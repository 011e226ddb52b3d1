// Package service provides pure helpers used by the extraction use cases.
package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprinter computes the content hash used for duplicate-document detection.
type Fingerprinter struct{}

// NewFingerprinter creates a Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint returns the hex-encoded SHA-256 digest of the raw document bytes.
func (f *Fingerprinter) Fingerprint(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}
