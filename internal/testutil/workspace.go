package testutil

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"sync"
	"time"

	"doclife/internal/doc"
)

// MemoryWorkspace is an in-memory doc.Workspace with fault injection.
type MemoryWorkspace struct {
	mu    sync.Mutex
	files map[string][]byte

	corruptNextMove bool
	failNextMove    error
	failNextWrite   error
}

// NewMemoryWorkspace creates an empty workspace.
func NewMemoryWorkspace() *MemoryWorkspace {
	return &MemoryWorkspace{files: make(map[string][]byte)}
}

// AddFile stores content at relPath, bypassing fault injection.
func (w *MemoryWorkspace) AddFile(relPath string, content []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[relPath] = append([]byte(nil), content...)
}

// Content returns the content at relPath.
func (w *MemoryWorkspace) Content(relPath string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[relPath]
	return data, ok
}

// Paths returns every stored path, sorted.
func (w *MemoryWorkspace) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CorruptNextMove makes the next Move flip a byte of the moved content.
func (w *MemoryWorkspace) CorruptNextMove() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.corruptNextMove = true
}

// FailNextMove makes the next Move return err without moving anything.
func (w *MemoryWorkspace) FailNextMove(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNextMove = err
}

// FailNextWrite makes the next Write return err.
func (w *MemoryWorkspace) FailNextWrite(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNextWrite = err
}

func (w *MemoryWorkspace) Write(relPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failNextWrite; err != nil {
		w.failNextWrite = nil
		return err
	}
	w.files[relPath] = data
	return nil
}

func (w *MemoryWorkspace) Open(relPath string) (io.ReadCloser, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[relPath]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: relPath, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (w *MemoryWorkspace) Stat(relPath string) (fs.FileInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[relPath]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: relPath, Err: fs.ErrNotExist}
	}
	return memFileInfo{name: path.Base(relPath), size: int64(len(data))}, nil
}

func (w *MemoryWorkspace) Move(from, to string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failNextMove; err != nil {
		w.failNextMove = nil
		return err
	}
	data, ok := w.files[from]
	if !ok {
		return &fs.PathError{Op: "rename", Path: from, Err: fs.ErrNotExist}
	}
	if _, exists := w.files[to]; exists {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	}
	if w.corruptNextMove {
		w.corruptNextMove = false
		data = append([]byte(nil), data...)
		if len(data) == 0 {
			data = []byte{0}
		} else {
			data[0] ^= 0xff
		}
	}
	delete(w.files, from)
	w.files[to] = data
	return nil
}

func (w *MemoryWorkspace) Remove(relPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, relPath)
	return nil
}

type memFileInfo struct {
	name string
	size int64
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0644 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Compile-time check
var _ doc.Workspace = (*MemoryWorkspace)(nil)
