package domain

// Envelope is the sealed form of one sensitive field value. It is the only
// representation of a sensitive value that may be persisted.
type Envelope struct {
	KeyID      string    `json:"key_id"`
	Algorithm  Algorithm `json:"alg"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	Tag        []byte    `json:"tag"`
}

// IsZero reports whether the envelope carries no ciphertext.
func (e Envelope) IsZero() bool {
	return len(e.Ciphertext) == 0 && len(e.Tag) == 0
}
