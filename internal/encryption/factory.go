package encryption

import (
	"fmt"

	"doclife/internal/config"
	"doclife/internal/doc"
)

// Encryptor is a doc.Encryptor with key management.
type Encryptor interface {
	doc.Encryptor

	// Setup generates and stores a new key pair protected by passphrase.
	Setup(passphrase string) error

	// Unlock makes the private key available to Decrypt.
	Unlock(passphrase string) error

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool
}

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
