package localstore

import (
	"context"
	"fmt"

	"feid-go/internal/config"
	"feid-go/internal/feid"
)

// NewStoreFromConfig creates a LocalStore implementation based on the store config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig) (feid.LocalStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.Name, cfg.FSRoot)
	case "s3":
		return NewS3Store(ctx, cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
