package blob

import (
	"context"
	"fmt"

	"projectdb-go/internal/config"
)

// Credentials are the optional static S3 credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// NewStoreFromConfig creates a Store implementation based on the documents config type.
func NewStoreFromConfig(ctx context.Context, cfg config.DocumentConfig, creds Credentials) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem store requires fs_root to be set")
		}
		s, err := NewFileSystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown document store type: %s", cfg.Type)
	}
}
