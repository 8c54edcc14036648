package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("docs-platform", "/home/user/.local/share/doclife")
	original.Actor = "alice"
	original.Mirror = MirrorConfig{Type: "s3", S3Bucket: "docs", S3Prefix: "public", S3Region: "eu-west-1"}
	original.Backup.Encrypt = true
	original.Review = ReviewConfig{TimeoutHours: 72, ExpiryAction: "escalate", RequireUnpublishReason: true}
	original.Sync.Ignore = []string{"*.tmp"}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.ProjectID != original.ProjectID {
		t.Errorf("ProjectID = %q, want %q", got.ProjectID, original.ProjectID)
	}
	if got.Actor != "alice" {
		t.Errorf("Actor = %q, want %q", got.Actor, "alice")
	}
	if got.Mirror.Type != "s3" || got.Mirror.S3Bucket != "docs" || got.Mirror.S3Region != "eu-west-1" {
		t.Errorf("Mirror = %+v", got.Mirror)
	}
	if got.Mirror.PublicRoot != "" {
		t.Errorf("Mirror.PublicRoot = %q, want empty", got.Mirror.PublicRoot)
	}
	if !got.Backup.Encrypt || got.Backup.BackupRoot != original.Backup.BackupRoot {
		t.Errorf("Backup = %+v", got.Backup)
	}
	if got.Review != original.Review {
		t.Errorf("Review = %+v, want %+v", got.Review, original.Review)
	}
	if len(got.Sync.Ignore) != 1 || got.Sync.Ignore[0] != "*.tmp" {
		t.Errorf("Sync.Ignore = %v", got.Sync.Ignore)
	}
}

func TestManager_Read_Partial(t *testing.T) {
	input := `
project_id = "p"

[workspace]
private_root = "/srv/docs"

[mirror]
type = "filesystem"
public_root = "/srv/public"
`
	got, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Workspace.PrivateRoot != "/srv/docs" || got.Mirror.PublicRoot != "/srv/public" {
		t.Errorf("Read() = %+v", got)
	}
	if got.Database.Type != "" {
		t.Errorf("Database.Type = %q, want empty", got.Database.Type)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("p1", "/data/doclife")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ProjectID", cfg.ProjectID, "p1"},
		{"LogDir", cfg.LogDir, "/data/doclife/log"},
		{"PolicyPath", cfg.PolicyPath, "/data/doclife/policy.yaml"},
		{"PrivateRoot", cfg.Workspace.PrivateRoot, "/data/doclife/private"},
		{"PublicRoot", cfg.Mirror.PublicRoot, "/data/doclife/public"},
		{"BackupRoot", cfg.Backup.BackupRoot, "/data/doclife/backup"},
		{"PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/doclife/keys/doclife.pub"},
		{"PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/doclife/keys/doclife.key"},
		{"DataDir", cfg.Database.DataDir, "/data/doclife/db"},
		{"ExpiryAction", cfg.Review.ExpiryAction, "none"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Sync.Workers != 4 {
		t.Errorf("Sync.Workers = %d, want 4", cfg.Sync.Workers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "missing project", mutate: func(c *Config) { c.ProjectID = "" }, wantErr: true},
		{name: "missing private root", mutate: func(c *Config) { c.Workspace.PrivateRoot = "" }, wantErr: true},
		{name: "unknown expiry action", mutate: func(c *Config) { c.Review.ExpiryAction = "delete" }, wantErr: true},
		{name: "reject expiry action", mutate: func(c *Config) { c.Review.ExpiryAction = "reject" }},
		{name: "negative timeout", mutate: func(c *Config) { c.Review.TimeoutHours = -1 }, wantErr: true},
		{name: "negative workers", mutate: func(c *Config) { c.Sync.Workers = -2 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("p", "/data")
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "doclife.toml")

		if err := Init(path, NewConfig("p", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "doclife.toml")
		cfg := NewConfig("p", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "doclife.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.ProjectID != "read-test" || got.Database.Type != "memory" {
			t.Errorf("ReadFromFile() = %+v", got)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/doclife.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
