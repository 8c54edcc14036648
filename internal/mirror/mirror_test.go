package mirror

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"doclife/internal/config"
	"doclife/internal/doc"
)

// exerciseMirror runs the doc.Mirror contract against any implementation.
func exerciseMirror(t *testing.T, m doc.Mirror) {
	t.Helper()

	if err := m.ValidateSetup(); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	files := map[string]string{
		"design/specification/api.md": "# API",
		"README.md":                   "readme",
		"user/user_guide/start.md":    "",
	}
	for p, content := range files {
		if err := m.Put(p, strings.NewReader(content)); err != nil {
			t.Fatalf("Put(%s) error = %v", p, err)
		}
	}

	for p, want := range files {
		r, err := m.Open(p)
		if err != nil {
			t.Fatalf("Open(%s) error = %v", p, err)
		}
		got, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("ReadAll(%s) error = %v", p, err)
		}
		if string(got) != want {
			t.Errorf("Open(%s) = %q, want %q", p, got, want)
		}
	}

	got, err := m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"README.md", "design/specification/api.md", "user/user_guide/start.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	if err := m.Put("README.md", strings.NewReader("v2")); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	r, err := m.Open("README.md")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "v2" {
		t.Errorf("after overwrite = %q, want %q", data, "v2")
	}

	if err := m.Delete("README.md"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete("README.md"); err != nil {
		t.Errorf("Delete() of missing copy error = %v, want nil", err)
	}
	if _, err := m.Open("README.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open() after delete error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryMirror(t *testing.T) {
	exerciseMirror(t, NewMemoryMirror())
}

func TestFileSystemMirror(t *testing.T) {
	m, err := NewFileSystemMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}
	exerciseMirror(t, m)
}

func TestFileSystemMirror_ListSkipsTempFiles(t *testing.T) {
	m, err := NewFileSystemMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.Root(), ".doclife-tmp-123"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := m.Put("a.md", strings.NewReader("a")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a.md"}) {
		t.Errorf("List() = %v, want [a.md]", got)
	}
}

func TestFileSystemMirror_RejectsEscapingPaths(t *testing.T) {
	m, err := NewFileSystemMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemMirror() error = %v", err)
	}
	if err := m.Put("../escape.md", strings.NewReader("x")); err == nil {
		t.Error("Put() expected error for path outside the root")
	}
}

func TestNewMirrorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MirrorConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.MirrorConfig{Type: "memory"}},
		{name: "filesystem", cfg: config.MirrorConfig{Type: "filesystem", PublicRoot: t.TempDir()}},
		{name: "filesystem without root", cfg: config.MirrorConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3 without bucket", cfg: config.MirrorConfig{Type: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.MirrorConfig{Type: "ftp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMirrorFromConfig(t.Context(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMirrorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewMirrorFromConfig() returned nil mirror")
			}
		})
	}
}
