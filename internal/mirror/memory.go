package mirror

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"

	"doclife/internal/doc"
)

// MemoryMirror is an in-memory implementation of doc.Mirror, useful for
// tests. It is safe for concurrent use.
type MemoryMirror struct {
	files map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{files: make(map[string][]byte)}
}

// Put stores the content of r at relPath.
func (m *MemoryMirror) Put(relPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[relPath] = data
	return nil
}

// Open returns the stored copy of relPath.
func (m *MemoryMirror) Open(relPath string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[relPath]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: relPath, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete drops relPath.
func (m *MemoryMirror) Delete(relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, relPath)
	return nil
}

// List returns every stored path, sorted.
func (m *MemoryMirror) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// ValidateSetup always succeeds for the in-memory mirror.
func (m *MemoryMirror) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryMirror implements doc.Mirror
var _ doc.Mirror = (*MemoryMirror)(nil)
