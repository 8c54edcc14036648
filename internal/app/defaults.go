package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "DOCLIFE_CONFIG_PATH"
	// EnvHome overrides the base directory for doclife data.
	EnvHome = "DOCLIFE_HOME"
	// EnvBackupPassphrase supplies the backup key passphrase non-interactively.
	EnvBackupPassphrase = "DOCLIFE_BACKUP_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DOCLIFE_CONFIG_PATH: config file location (default: $XDG_CONFIG_HOME/doclife.toml)
//   - DOCLIFE_HOME: base directory for doclife data (default: $XDG_DATA_HOME/doclife)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadEnvFile reads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// getConfigPath returns the config file path, checking DOCLIFE_CONFIG_PATH first,
// then falling back to the XDG config directory.
func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	if xdg.ConfigHome == "" {
		return "", fmt.Errorf("cannot determine config directory")
	}
	return filepath.Join(xdg.ConfigHome, "doclife.toml"), nil
}

// getBaseDir returns the base directory for doclife data, checking DOCLIFE_HOME
// first, then falling back to the XDG data directory.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}
	if xdg.DataHome == "" {
		return "", fmt.Errorf("cannot determine data directory")
	}
	return filepath.Join(xdg.DataHome, "doclife"), nil
}
