package mirror

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doclife/internal/doc"
	"doclife/internal/workspace"
)

// FileSystemMirror keeps published copies under a public root directory,
// laid out with the same relative paths as the private root.
type FileSystemMirror struct {
	root string
}

// NewFileSystemMirror creates a mirror rooted at root, creating it if needed.
func NewFileSystemMirror(root string) (*FileSystemMirror, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create public root: %w", err)
	}
	return &FileSystemMirror{root: absRoot}, nil
}

// Root returns the absolute public root.
func (m *FileSystemMirror) Root() string {
	return m.root
}

// Put atomically replaces the published copy at relPath.
func (m *FileSystemMirror) Put(relPath string, r io.Reader) error {
	dest, err := workspace.Resolve(m.root, relPath)
	if err != nil {
		return err
	}
	return workspace.WriteAtomic(dest, r)
}

// Open opens the published copy at relPath.
func (m *FileSystemMirror) Open(relPath string) (io.ReadCloser, error) {
	src, err := workspace.Resolve(m.root, relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(src)
}

// Delete removes the published copy. A missing copy is not an error.
func (m *FileSystemMirror) Delete(relPath string) error {
	target, err := workspace.Resolve(m.root, relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", relPath, err)
	}
	return nil
}

// List walks the public root and returns every regular file, slash-separated
// and sorted. In-flight temp files are skipped.
func (m *FileSystemMirror) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".doclife-tmp-") {
			return nil
		}
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking public root: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ValidateSetup verifies that the public root exists and is writable.
func (m *FileSystemMirror) ValidateSetup() error {
	info, err := os.Stat(m.root)
	if err != nil {
		return fmt.Errorf("public root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("public root is not a directory: %s", m.root)
	}
	probe, err := os.CreateTemp(m.root, ".doclife-tmp-probe-*")
	if err != nil {
		return fmt.Errorf("public root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Compile-time check that FileSystemMirror implements doc.Mirror
var _ doc.Mirror = (*FileSystemMirror)(nil)
