package archive

import (
	"context"
	"fmt"
)

// Backends accepted by Config.Backend.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects and configures the archive backend.
type Config struct {
	Backend string `env:"ARCHIVE_BACKEND" envDefault:"none"`
	Dir     string `env:"ARCHIVE_DIR" envDefault:"./var/webhooks"`
	S3      S3Config
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendLocal:
		if c.Dir == "" {
			return ErrMissingDir
		}
		return nil
	case BackendS3:
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return ErrMissingBucket
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}

// New builds the configured backend. It returns nil, nil for BackendNone.
func New(ctx context.Context, cfg Config, opts ...S3Option) (Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendLocal:
		return NewLocal(cfg.Dir)
	case BackendS3:
		return NewS3(ctx, cfg.S3, opts...)
	default:
		return nil, nil
	}
}
