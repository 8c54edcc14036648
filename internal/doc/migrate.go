package doc

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
)

// OperationIDFormat formats the timestamp that keys a bulk operation's backups.
const OperationIDFormat = "20060102T150405Z"

// ItemStatus is the outcome of one item in a bulk operation.
type ItemStatus string

const (
	StatusMigrated  ItemStatus = "migrated"
	StatusCorrected ItemStatus = "corrected"
	StatusFailed    ItemStatus = "failed"
	StatusSkipped   ItemStatus = "skipped"
	StatusReported  ItemStatus = "reported"
	StatusOK        ItemStatus = "ok"
	StatusPlanned   ItemStatus = "planned"
)

// MigrationItem is the per-record result of MigratePaths.
type MigrationItem struct {
	DocumentID string
	From       string
	To         string
	Status     ItemStatus
	Err        error
}

// MigrationReport is the aggregate result of MigratePaths.
type MigrationReport struct {
	OperationID string
	DryRun      bool
	Items       []MigrationItem
	Migrated    int
	Failed      int
	Skipped     int
}

func (r *MigrationReport) add(item MigrationItem) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case StatusMigrated:
		r.Migrated++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// CanonicalTarget returns the path a record should live at, or "" when it
// already conforms. Exception paths conform by definition.
func CanonicalTarget(d *Document) (string, error) {
	if IsExceptionPath(d.FilePath) {
		return "", nil
	}
	category := CategoryFor(d.DocumentType)
	if category == "" {
		return "", fmt.Errorf("document type %q has no category", d.DocumentType)
	}
	if IsCanonical(d.FilePath, category, d.DocumentType) {
		return "", nil
	}
	filename := baseName(d.FilePath)
	if parts, err := ParsePath(d.FilePath); err == nil {
		filename = parts.Filename
	}
	return ConstructPath(category, d.DocumentType, filename), nil
}

// Migrator moves working copies to canonical paths with a backup and a
// checksum check around every move.
type Migrator struct {
	workspace Workspace
	backups   BackupStore
	logger    Logger
}

// NewMigrator creates a Migrator.
func NewMigrator(workspace Workspace, backups BackupStore, logger Logger) *Migrator {
	return &Migrator{workspace: workspace, backups: backups, logger: logger}
}

// Move relocates from to to. The sequence is snapshot, checksum, move,
// checksum. On mismatch the original is restored from the snapshot, the
// destination removed, and IntegrityMismatch returned. It returns the
// verified checksum.
func (m *Migrator) Move(opID, from, to string) (string, error) {
	if _, err := m.workspace.Stat(to); err == nil {
		return "", fmt.Errorf("target %s already exists", to)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", storageErr("stat", to, err)
	}

	content, err := m.read(from)
	if err != nil {
		return "", err
	}
	if err := m.backups.Snapshot(opID, from, bytes.NewReader(content)); err != nil {
		return "", storageErr("backup", from, err)
	}
	before, err := Checksum(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	if err := m.workspace.Move(from, to); err != nil {
		if rerr := m.Rollback(opID, from, to); rerr != nil {
			m.logger.Error("rollback after failed move", "from", from, "to", to, "error", rerr)
		}
		return "", storageErr("move", from, err)
	}

	moved, err := m.read(to)
	if err != nil {
		if rerr := m.Rollback(opID, from, to); rerr != nil {
			m.logger.Error("rollback after unreadable move", "from", from, "to", to, "error", rerr)
		}
		return "", err
	}
	after, err := Checksum(bytes.NewReader(moved))
	if err != nil {
		return "", err
	}
	if before != after {
		m.logger.Error("move checksum mismatch", "from", from, "to", to, "before", before, "after", after)
		if rerr := m.Rollback(opID, from, to); rerr != nil {
			return "", fmt.Errorf("%w (rollback failed: %v)", &IntegrityMismatch{Path: to, Before: before, After: after}, rerr)
		}
		return "", &IntegrityMismatch{Path: to, Before: before, After: after}
	}
	return after, nil
}

// Rollback restores from out of the operation's snapshot and removes to.
func (m *Migrator) Rollback(opID, from, to string) error {
	var buf bytes.Buffer
	if err := m.backups.Restore(opID, from, &buf); err != nil {
		return storageErr("restore backup", from, err)
	}
	if err := m.workspace.Write(from, &buf); err != nil {
		return storageErr("restore", from, err)
	}
	if to != "" && to != from {
		if err := m.workspace.Remove(to); err != nil {
			return storageErr("remove", to, err)
		}
	}
	m.logger.Info("move rolled back", "path", from)
	return nil
}

// Discard drops the snapshot once the record commit has landed.
func (m *Migrator) Discard(opID, from string) {
	if err := m.backups.Discard(opID, from); err != nil {
		m.logger.Warn("discarding backup failed", "operation", opID, "path", from, "error", err)
	}
}

func (m *Migrator) read(relPath string) ([]byte, error) {
	f, err := m.workspace.Open(relPath)
	if err != nil {
		return nil, storageErr("open", relPath, err)
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, storageErr("read", relPath, err)
	}
	return buf.Bytes(), nil
}
