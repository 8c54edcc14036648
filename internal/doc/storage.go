package doc

import (
	"io"
	"io/fs"
)

// Workspace is the private root holding the source-of-truth copy of every
// document. Paths are slash-separated and relative to the root.
type Workspace interface {
	// Write creates or replaces the file at relPath, creating parent directories.
	Write(relPath string, r io.Reader) error

	// Open opens a file for reading. Missing files yield an error wrapping fs.ErrNotExist.
	Open(relPath string) (io.ReadCloser, error)

	// Stat returns fresh file info.
	Stat(relPath string) (fs.FileInfo, error)

	// Move renames a file, creating the destination directory.
	Move(from, to string) error

	// Remove deletes a file. Removing a missing file is not an error.
	Remove(relPath string) error
}

// Mirror is the public root that published copies live under. Paths are the
// same relative paths used in the workspace.
type Mirror interface {
	// Put stores the content read from r at relPath, replacing any existing copy.
	Put(relPath string, r io.Reader) error

	// Open opens a published copy. Missing copies yield an error wrapping fs.ErrNotExist.
	Open(relPath string) (io.ReadCloser, error)

	// Delete removes a published copy. Deleting a missing copy is not an error.
	Delete(relPath string) error

	// List returns every published path, sorted.
	List() ([]string, error)

	// ValidateSetup verifies that the mirror is reachable and writable.
	ValidateSetup() error
}

// BackupStore holds snapshots taken before a physical move so the move can be
// undone. Snapshots are keyed by operation ID and are never addressable from
// the workspace or mirror.
type BackupStore interface {
	// Snapshot stores the content of relPath for operation opID.
	Snapshot(opID, relPath string, r io.Reader) error

	// Restore writes the snapshot of relPath for opID to w.
	Restore(opID, relPath string, w io.Writer) error

	// Discard drops a snapshot. Discarding a missing snapshot is not an error.
	Discard(opID, relPath string) error
}

// Encryptor protects backup snapshots at rest.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
