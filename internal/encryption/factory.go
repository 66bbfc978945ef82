package encryption

import (
	"errors"
	"fmt"

	"msync/internal/bt"
	"msync/internal/config"
)

// NewEncryptorFromConfig creates the Encryptor used for vault objects.
// The age encryptor needs both key paths, and they must differ: Setup writes
// the public key in plaintext and must never overwrite the private key.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (bt.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, errors.New("age: public_key_path and private_key_path are required")
		}
		if cfg.PublicKeyPath == cfg.PrivateKeyPath {
			return nil, fmt.Errorf("age: public and private key share the path %s", cfg.PublicKeyPath)
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
