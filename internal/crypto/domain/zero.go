package domain

// Zero overwrites b in place. Callers zero decrypted field values, unwrapped key
// material and derived signing keys as soon as they are no longer needed.
func Zero(b []byte) {
	clear(b)
}
