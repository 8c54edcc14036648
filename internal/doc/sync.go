package doc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Checksum returns the hex SHA-256 digest of everything read from r.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PathMatcher decides whether a public path is excluded from orphan detection.
type PathMatcher interface {
	Match(relPath string) bool
}

// DriftKind classifies the divergence between a record and the files.
type DriftKind string

const (
	DriftNone          DriftKind = "in-sync"
	DriftMissing       DriftKind = "missing"        // public copy absent
	DriftMismatch      DriftKind = "mismatch"       // public copy differs from the source
	DriftStaleHash     DriftKind = "stale-hash"     // files agree, recorded hash does not
	DriftSourceMissing DriftKind = "source-missing" // nothing to republish from
	DriftRelocated     DriftKind = "relocated"      // source moved since it was published
	DriftOrphan        DriftKind = "orphan"         // public file with no published record
)

// Repairable reports whether sync can correct this drift on its own.
func (k DriftKind) Repairable() bool {
	switch k {
	case DriftMissing, DriftMismatch, DriftStaleHash, DriftRelocated:
		return true
	}
	return false
}

// PublishResult describes a verified public copy.
type PublishResult struct {
	PublishedPath string
	Checksum      string

	replaced []byte // public copy this publish overwrote; nil if there was none
}

// Drift is the result of comparing one published record against the files.
type Drift struct {
	Kind           DriftKind
	SourceChecksum string
	PublicChecksum string
}

// SyncEngine performs the physical side of publication: copying into the
// mirror with checksum verification, removing public copies, and detecting
// drift. It never writes records.
type SyncEngine struct {
	workspace Workspace
	mirror    Mirror
	ignore    PathMatcher
	logger    Logger
}

// NewSyncEngine creates a SyncEngine. ignore may be nil.
func NewSyncEngine(workspace Workspace, mirror Mirror, ignore PathMatcher, logger Logger) *SyncEngine {
	return &SyncEngine{workspace: workspace, mirror: mirror, ignore: ignore, logger: logger}
}

// SourceChecksum hashes the private copy at relPath.
func (e *SyncEngine) SourceChecksum(relPath string) (string, error) {
	f, err := e.workspace.Open(relPath)
	if err != nil {
		return "", storageErr("open", relPath, err)
	}
	defer f.Close()
	sum, err := Checksum(f)
	if err != nil {
		return "", storageErr("read", relPath, err)
	}
	return sum, nil
}

// PublicChecksum hashes the public copy at relPath. It returns "" and no
// error when the copy does not exist.
func (e *SyncEngine) PublicChecksum(relPath string) (string, error) {
	f, err := e.mirror.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", storageErr("open public", relPath, err)
	}
	defer f.Close()
	sum, err := Checksum(f)
	if err != nil {
		return "", storageErr("read public", relPath, err)
	}
	return sum, nil
}

// Publish copies the source of d to the mirror under the same relative path
// and verifies the copy. The source stays authoritative. On any failure after
// the copy has started the destination is put back the way it was: a copy
// that existed before is restored, otherwise the path is removed.
func (e *SyncEngine) Publish(d *Document) (*PublishResult, error) {
	before, err := e.SourceChecksum(d.FilePath)
	if err != nil {
		return nil, fmt.Errorf("checksumming source: %w", err)
	}
	replaced, err := e.snapshotPublic(d.FilePath)
	if err != nil {
		return nil, err
	}

	src, err := e.workspace.Open(d.FilePath)
	if err != nil {
		return nil, storageErr("open", d.FilePath, err)
	}
	putErr := e.mirror.Put(d.FilePath, src)
	src.Close()
	if putErr != nil {
		e.restore(d.FilePath, replaced)
		return nil, storageErr("copy", d.FilePath, putErr)
	}

	after, err := e.PublicChecksum(d.FilePath)
	if err != nil {
		e.restore(d.FilePath, replaced)
		return nil, fmt.Errorf("checksumming public copy: %w", err)
	}
	if before != after {
		e.restore(d.FilePath, replaced)
		e.logger.Error("publish checksum mismatch", "document", d.ID, "path", d.FilePath, "before", before, "after", after)
		return nil, &IntegrityMismatch{Path: d.FilePath, Before: before, After: after}
	}

	e.logger.Debug("public copy verified", "document", d.ID, "path", d.FilePath, "checksum", after)
	return &PublishResult{PublishedPath: d.FilePath, Checksum: after, replaced: replaced}, nil
}

// Revert undoes a successful Publish whose record commit failed.
func (e *SyncEngine) Revert(res *PublishResult) {
	e.restore(res.PublishedPath, res.replaced)
}

// snapshotPublic reads the current public copy at relPath. It returns nil
// when there is none.
func (e *SyncEngine) snapshotPublic(relPath string) ([]byte, error) {
	f, err := e.mirror.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("open public", relPath, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, storageErr("read public", relPath, err)
	}
	return data, nil
}

// Unpublish removes the public copy at publishedPath. The source is untouched.
func (e *SyncEngine) Unpublish(publishedPath string) error {
	if publishedPath == "" {
		return nil
	}
	if err := e.mirror.Delete(publishedPath); err != nil {
		return storageErr("delete public", publishedPath, err)
	}
	return nil
}

// Check compares a published record against the private and public copies.
func (e *SyncEngine) Check(d *Document) (Drift, error) {
	source, err := e.SourceChecksum(d.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Drift{Kind: DriftSourceMissing}, nil
		}
		return Drift{}, err
	}
	public, err := e.PublicChecksum(d.PublishedPath)
	if err != nil {
		return Drift{}, err
	}

	drift := Drift{SourceChecksum: source, PublicChecksum: public}
	switch {
	case d.PublishedPath != d.FilePath:
		drift.Kind = DriftRelocated
	case public == "":
		drift.Kind = DriftMissing
	case public != source:
		drift.Kind = DriftMismatch
	case d.ContentHash != source:
		drift.Kind = DriftStaleHash
	default:
		drift.Kind = DriftNone
	}
	return drift, nil
}

// Orphans lists public files that no published record accounts for. They are
// reported only.
func (e *SyncEngine) Orphans(published map[string]bool) ([]string, error) {
	paths, err := e.mirror.List()
	if err != nil {
		return nil, storageErr("list public", "", err)
	}
	var orphans []string
	for _, p := range paths {
		if published[p] {
			continue
		}
		if e.ignore != nil && e.ignore.Match(p) {
			continue
		}
		orphans = append(orphans, p)
	}
	return orphans, nil
}

func (e *SyncEngine) restore(relPath string, previous []byte) {
	if previous == nil {
		if err := e.mirror.Delete(relPath); err != nil {
			e.logger.Warn("removing partial public copy failed", "path", relPath, "error", err)
		}
		return
	}
	if err := e.mirror.Put(relPath, bytes.NewReader(previous)); err != nil {
		e.logger.Error("restoring previous public copy failed", "path", relPath, "error", err)
	}
}
