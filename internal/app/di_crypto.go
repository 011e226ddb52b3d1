package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/extractvault/internal/crypto/domain"
	cryptoService "github.com/allisson/extractvault/internal/crypto/service"
)

// KMSService returns the service that opens KMS keepers.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KeyRing returns the field key ring loaded from FIELD_KEYS, unwrapped through the KMS
// when KMS_KEY_URI is set.
func (c *Container) KeyRing() (*cryptoDomain.KeyRing, error) {
	c.keyRingInit.Do(func() {
		ring, err := c.initKeyRing()
		if err != nil {
			c.setInitError("keyRing", err)
			return
		}
		c.keyRing = ring
	})
	if err := c.initError("keyRing"); err != nil {
		return nil, err
	}
	return c.keyRing, nil
}

// FieldCipher returns the envelope cipher bound to the key ring.
func (c *Container) FieldCipher() (*cryptoService.FieldCipher, error) {
	c.fieldCipherInit.Do(func() {
		ring, err := c.KeyRing()
		if err != nil {
			c.setInitError("fieldCipher", fmt.Errorf("failed to get key ring for field cipher: %w", err))
			return
		}
		c.fieldCipher = cryptoService.NewFieldCipher(ring, cryptoService.NewAEADManager())
	})
	if err := c.initError("fieldCipher"); err != nil {
		return nil, err
	}
	return c.fieldCipher, nil
}

func (c *Container) initKeyRing() (*cryptoDomain.KeyRing, error) {
	if c.config.KMSProvider != "" && c.config.KMSKeyURI == "" {
		return nil, fmt.Errorf("KMS_PROVIDER is %q but KMS_KEY_URI is empty", c.config.KMSProvider)
	}

	ring, err := cryptoService.LoadKeyRing(
		context.Background(),
		cryptoService.KeyRingOptions{
			FieldKeys:     c.config.FieldKeys,
			ActiveKeyID:   c.config.ActiveFieldKeyID,
			RetiredKeyIDs: c.config.RetiredFieldKeyIDs,
			Algorithm:     c.config.FieldKeyAlgorithm,
			KMSKeyURI:     c.config.KMSKeyURI,
		},
		c.KMSService(),
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load field key ring: %w", err)
	}
	return ring, nil
}
