package backup

import (
	"fmt"

	"doclife/internal/config"
	"doclife/internal/doc"
)

// NewStoreFromConfig creates a BackupStore based on the backup config type.
// enc is used only when cfg.Encrypt is set.
func NewStoreFromConfig(cfg config.BackupConfig, enc doc.Encryptor) (doc.BackupStore, error) {
	if cfg.Encrypt && enc == nil {
		return nil, fmt.Errorf("backup encryption enabled but no encryptor configured")
	}
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem", "":
		if cfg.BackupRoot == "" {
			return nil, fmt.Errorf("filesystem backup store requires backup_root to be set")
		}
		if !cfg.Encrypt {
			enc = nil
		}
		return NewFileSystemStore(cfg.BackupRoot, enc)
	default:
		return nil, fmt.Errorf("unknown backup store type: %s", cfg.Type)
	}
}
