package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"doclife/internal/doc"
)

// OSWorkspace is the real filesystem implementation of doc.Workspace.
// Every relative path is resolved under root; paths that would escape the
// root are rejected.
type OSWorkspace struct {
	root string
}

// NewOSWorkspace creates a workspace rooted at root, creating the directory
// if needed.
func NewOSWorkspace(root string) (*OSWorkspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating private root: %w", err)
	}
	return &OSWorkspace{root: absRoot}, nil
}

// Root returns the absolute private root.
func (w *OSWorkspace) Root() string {
	return w.root
}

// Write atomically replaces the file at relPath with the content of r.
func (w *OSWorkspace) Write(relPath string, r io.Reader) error {
	full, err := Resolve(w.root, relPath)
	if err != nil {
		return err
	}
	return WriteAtomic(full, r)
}

// Open opens a file for reading.
func (w *OSWorkspace) Open(relPath string) (io.ReadCloser, error) {
	full, err := Resolve(w.root, relPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", relPath)
	}
	return os.Open(full)
}

// Stat returns fresh file info for relPath.
func (w *OSWorkspace) Stat(relPath string) (fs.FileInfo, error) {
	full, err := Resolve(w.root, relPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(full)
}

// Move renames from to to, creating the destination directory. Empty source
// directories left behind are removed up to the root.
func (w *OSWorkspace) Move(from, to string) error {
	src, err := Resolve(w.root, from)
	if err != nil {
		return err
	}
	dst, err := Resolve(w.root, to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("renaming %s: %w", from, err)
	}
	pruneEmptyDirs(w.root, filepath.Dir(src))
	return nil
}

// Remove deletes relPath. A missing file is not an error.
func (w *OSWorkspace) Remove(relPath string) error {
	full, err := Resolve(w.root, relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", relPath, err)
	}
	return nil
}

// Resolve joins a slash-separated relative path onto root. Absolute paths and
// paths leaving the root are rejected.
func Resolve(root, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty path")
	}
	if path.IsAbs(relPath) || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path %s must be relative", relPath)
	}
	clean := path.Clean(relPath)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %s escapes the root", relPath)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// WriteAtomic writes r to dest via a temp file in the same directory and a
// rename, creating parent directories.
func WriteAtomic(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".doclife-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// pruneEmptyDirs removes dir and its empty parents, stopping at root.
func pruneEmptyDirs(root, dir string) {
	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Compile-time check that OSWorkspace implements doc.Workspace
var _ doc.Workspace = (*OSWorkspace)(nil)
