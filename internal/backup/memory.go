package backup

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"

	"doclife/internal/doc"
)

// MemoryStore is an in-memory doc.BackupStore for tests. It is safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]map[string][]byte // opID -> relPath -> content
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Snapshot(opID, relPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots[opID] == nil {
		s.snapshots[opID] = make(map[string][]byte)
	}
	s.snapshots[opID][relPath] = data
	return nil
}

func (s *MemoryStore) Restore(opID, relPath string, w io.Writer) error {
	s.mu.Lock()
	data, ok := s.snapshots[opID][relPath]
	s.mu.Unlock()
	if !ok {
		return &fs.PathError{Op: "restore", Path: opID + "/" + relPath, Err: fs.ErrNotExist}
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *MemoryStore) Discard(opID, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots[opID], relPath)
	if len(s.snapshots[opID]) == 0 {
		delete(s.snapshots, opID)
	}
	return nil
}

// Paths returns the snapshot paths held for opID, sorted.
func (s *MemoryStore) Paths(opID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for p := range s.snapshots[opID] {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Compile-time check that MemoryStore implements doc.BackupStore
var _ doc.BackupStore = (*MemoryStore)(nil)
