package mirror

import (
	"context"
	"fmt"

	"doclife/internal/config"
	"doclife/internal/doc"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror config type.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (doc.Mirror, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryMirror(), nil
	case "s3":
		return NewS3Mirror(ctx, cfg)
	case "filesystem", "":
		if cfg.PublicRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires public_root to be set")
		}
		return NewFileSystemMirror(cfg.PublicRoot)
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
