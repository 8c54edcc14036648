package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for doclife.
type Config struct {
	ProjectID  string           `toml:"project_id"`
	Actor      string           `toml:"actor"` // default actor recorded in the audit log
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level,omitempty"` // minimum level echoed to stderr
	PolicyPath string           `toml:"policy_path"`
	Workspace  WorkspaceConfig  `toml:"workspace"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Review     ReviewConfig     `toml:"review"`
	Sync       SyncConfig       `toml:"sync"`
}

// WorkspaceConfig locates the private root holding every working copy.
type WorkspaceConfig struct {
	PrivateRoot string `toml:"private_root"`
}

// MirrorConfig describes where published copies live.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "filesystem", "memory", or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	PublicRoot string `toml:"public_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores; implies path-style addressing

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// BackupConfig describes the store that holds snapshots taken before a move.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BackupConfig struct {
	Type       string `toml:"type"`                   // "filesystem" or "memory"
	BackupRoot string `toml:"backup_root,omitempty"` // only used for type=filesystem
	Encrypt    bool   `toml:"encrypt"`               // encrypt snapshots with the configured key
}

// EncryptionConfig holds the age key pair used to protect backups. The
// private key is stored encrypted with the operator's passphrase.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ReviewConfig controls the review gate.
type ReviewConfig struct {
	TimeoutHours           int    `toml:"timeout_hours"` // 0 disables expiry
	ExpiryAction           string `toml:"expiry_action"` // "none", "escalate", or "reject"
	RequireUnpublishReason bool   `toml:"require_unpublish_reason"`
}

// SyncConfig controls sync passes.
type SyncConfig struct {
	Workers int      `toml:"workers"`
	Ignore  []string `toml:"ignore"` // public paths never reported as orphans
}

// DefaultSyncIgnore lists public files that are never treated as orphans.
var DefaultSyncIgnore = []string{".DS_Store", "*.tmp", ".doclife-*"}

// NewConfig creates a new Config with the provided values and default paths
// under baseDir.
func NewConfig(projectID, baseDir string) *Config {
	return &Config{
		ProjectID:  projectID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		PolicyPath: filepath.Join(baseDir, "policy.yaml"),
		Workspace:  WorkspaceConfig{PrivateRoot: filepath.Join(baseDir, "private")},
		Mirror:     MirrorConfig{Type: "filesystem", PublicRoot: filepath.Join(baseDir, "public")},
		Backup:     BackupConfig{Type: "filesystem", BackupRoot: filepath.Join(baseDir, "backup")},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "doclife.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "doclife.key"),
		},
		Database:   DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Review:     ReviewConfig{ExpiryAction: "none"},
		Sync:       SyncConfig{Workers: 4, Ignore: append([]string(nil), DefaultSyncIgnore...)},
	}
}

// Validate checks the values NewDocLifeApp depends on.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.Workspace.PrivateRoot == "" {
		return fmt.Errorf("workspace.private_root is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	switch c.Review.ExpiryAction {
	case "", "none", "escalate", "reject":
	default:
		return fmt.Errorf("review.expiry_action: unknown action %q", c.Review.ExpiryAction)
	}
	if c.Review.TimeoutHours < 0 {
		return fmt.Errorf("review.timeout_hours must not be negative")
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must not be negative")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config at %s: %w", path, err)
	}
	return nil
}
