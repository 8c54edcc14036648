package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"doclife/internal/doc"
	"doclife/internal/workspace"
)

// encryptedSuffix marks snapshots written through an Encryptor.
const encryptedSuffix = ".age"

// FileSystemStore keeps snapshots on disk:
//
//	<root>/
//	  <operation id>/
//	    <relative path>[.age]
//
// The root must live outside both the private and public roots.
type FileSystemStore struct {
	root string
	enc  doc.Encryptor // nil stores plaintext
}

// NewFileSystemStore creates a store rooted at root. enc may be nil.
func NewFileSystemStore(root string, enc doc.Encryptor) (*FileSystemStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup root: %w", err)
	}
	return &FileSystemStore{root: absRoot, enc: enc}, nil
}

// Root returns the absolute backup root.
func (s *FileSystemStore) Root() string {
	return s.root
}

func (s *FileSystemStore) snapshotPath(opID, relPath string) (string, error) {
	if opID == "" || strings.ContainsAny(opID, `/\`) || opID == "." || opID == ".." {
		return "", fmt.Errorf("invalid operation id %q", opID)
	}
	name := path.Join(opID, relPath)
	if s.enc != nil {
		name += encryptedSuffix
	}
	full, err := workspace.Resolve(s.root, name)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(full, filepath.Join(s.root, opID)+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes operation %s", relPath, opID)
	}
	return full, nil
}

// Snapshot stores the content of r as the backup of relPath for opID.
func (s *FileSystemStore) Snapshot(opID, relPath string, r io.Reader) error {
	dest, err := s.snapshotPath(opID, relPath)
	if err != nil {
		return err
	}
	if s.enc == nil {
		return workspace.WriteAtomic(dest, r)
	}
	var buf bytes.Buffer
	if err := s.enc.Encrypt(r, &buf); err != nil {
		return fmt.Errorf("encrypting snapshot of %s: %w", relPath, err)
	}
	return workspace.WriteAtomic(dest, &buf)
}

// Restore writes the snapshot of relPath for opID to w.
func (s *FileSystemStore) Restore(opID, relPath string, w io.Writer) error {
	src, err := s.snapshotPath(opID, relPath)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot of %s: %w", relPath, err)
	}
	defer f.Close()

	if s.enc != nil {
		if err := s.enc.Decrypt(f, w); err != nil {
			return fmt.Errorf("decrypting snapshot of %s: %w", relPath, err)
		}
		return nil
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading snapshot of %s: %w", relPath, err)
	}
	return nil
}

// Discard removes a snapshot and any directories it leaves empty.
func (s *FileSystemStore) Discard(opID, relPath string) error {
	target, err := s.snapshotPath(opID, relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot of %s: %w", relPath, err)
	}
	for dir := filepath.Dir(target); dir != s.root && strings.HasPrefix(dir, s.root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Operations lists the operation IDs that still hold snapshots.
func (s *FileSystemStore) Operations() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading backup root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Compile-time check that FileSystemStore implements doc.BackupStore
var _ doc.BackupStore = (*FileSystemStore)(nil)
