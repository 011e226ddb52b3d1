// Package domain defines the field-level encryption model: the key-version table
// (KeyRing), the sealed Envelope format and the cryptographic error taxonomy.
//
// Every sensitive field is sealed with the ring's active key version; the envelope keeps
// the version id so older envelopes stay readable after rotation until that version is
// retired from the ring.
package domain

import (
	"fmt"
	"sort"
	"sync"
)

// FieldKey is one version of the field encryption key.
type FieldKey struct {
	ID        string
	Algorithm Algorithm
	Key       []byte
}

// KeyRing is the key-version table consulted by the Crypto Engine. It is populated once
// at startup and read-only afterwards.
type KeyRing struct {
	activeID string
	keys     sync.Map
}

// NewKeyRing builds a ring from the given key versions. The ring takes ownership of each
// key slice; callers must not reuse them.
func NewKeyRing(keys []*FieldKey, activeID string) (*KeyRing, error) {
	if activeID == "" {
		return nil, ErrActiveFieldKeyIDNotSet
	}

	kr := &KeyRing{activeID: activeID}
	for _, k := range keys {
		if len(k.Key) != KeySize {
			kr.Close()
			return nil, fmt.Errorf(
				"%w: field key %s must be %d bytes, got %d",
				ErrInvalidKeySize, k.ID, KeySize, len(k.Key),
			)
		}
		if _, loaded := kr.keys.LoadOrStore(k.ID, k); loaded {
			kr.Close()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFieldKeyID, k.ID)
		}
	}

	if _, ok := kr.Get(activeID); !ok {
		kr.Close()
		return nil, fmt.Errorf("%w: ACTIVE_FIELD_KEY_ID=%s", ErrActiveFieldKeyNotFound, activeID)
	}

	return kr, nil
}

// ActiveKeyID returns the key version used for new encryptions.
func (k *KeyRing) ActiveKeyID() string {
	return k.activeID
}

// Active returns the key version used for new encryptions.
func (k *KeyRing) Active() (*FieldKey, error) {
	return k.Lookup(k.activeID)
}

// Get retrieves a key version by id.
func (k *KeyRing) Get(id string) (*FieldKey, bool) {
	if v, ok := k.keys.Load(id); ok {
		return v.(*FieldKey), true
	}
	return nil, false
}

// Lookup is Get returning ErrKeyNotFound for retired or unknown ids.
func (k *KeyRing) Lookup(id string) (*FieldKey, error) {
	key, ok := k.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return key, nil
}

// IDs returns the loaded key version ids in lexical order.
func (k *KeyRing) IDs() []string {
	var ids []string
	k.keys.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// Close zeroes all key material and empties the ring.
func (k *KeyRing) Close() {
	k.keys.Range(func(_, value any) bool {
		if fk, ok := value.(*FieldKey); ok {
			Zero(fk.Key)
		}
		return true
	})
	k.activeID = ""
	k.keys.Clear()
}
