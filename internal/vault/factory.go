package vault

import (
	"context"
	"fmt"

	"msync/internal/bt"
	"msync/internal/config"
)

// NewVaultFromConfig creates the vault of one location based on the vault
// config type. encryptor may be nil to store plaintext.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig, locationName string, encryptor bt.Encryptor, opts ...Option) (*ObjectVault, error) {
	bucket := BucketName(cfg.BucketPrefix, locationName)

	switch cfg.Type {
	case "memory":
		return NewObjectVault(NewMemoryStore(), encryptor, opts...), nil
	case "s3":
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewObjectVault(NewS3Store(client, cfg, bucket), encryptor, opts...), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_root to be set")
		}
		return NewObjectVault(NewFileSystemStore(cfg.FSRoot, bucket), encryptor, opts...), nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
