package doc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no document has the requested ID.
	ErrNotFound = errors.New("document not found")
	// ErrEntityNotFound is returned when the owning entity of a document does not exist.
	ErrEntityNotFound = errors.New("owning entity not found")
	// ErrPathTaken is returned when a new document would land on a path that
	// is already tracked or already holds a file.
	ErrPathTaken = errors.New("path already in use")
)

// PathStructureError reports a path that is neither canonical nor an exception.
type PathStructureError struct {
	Path   string
	Reason string
}

func (e *PathStructureError) Error() string {
	return fmt.Sprintf("path %q is not a canonical category/type/filename path: %s", e.Path, e.Reason)
}

// PathCategoryMismatch reports a path whose segments disagree with the
// record's explicit category or document type.
type PathCategoryMismatch struct {
	Path     string
	Field    string // "category" or "document_type"
	InPath   string
	InRecord string
}

func (e *PathCategoryMismatch) Error() string {
	return fmt.Sprintf("path %q encodes %s %q but the record has %q", e.Path, e.Field, e.InPath, e.InRecord)
}

// InvalidTransition reports a state change that is not in the transition table.
type InvalidTransition struct {
	From Stage
	To   Stage
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PreconditionFailed reports a legal transition whose precondition does not hold.
type PreconditionFailed struct {
	From   Stage
	To     Stage
	Reason string
}

func (e *PreconditionFailed) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, e.Reason)
}

// InsufficientReviewers reports an approval that did not reach consensus.
type InsufficientReviewers struct {
	Approved int
	Required int
	Pending  []string // assigned reviewers that have not approved
}

func (e *InsufficientReviewers) Error() string {
	msg := fmt.Sprintf("%d of %d required approvals recorded", e.Approved, e.Required)
	if len(e.Pending) > 0 {
		msg += fmt.Sprintf(" (waiting on %s)", strings.Join(e.Pending, ", "))
	}
	return msg
}

// MissingReason reports an action that requires a reason but was given none.
type MissingReason struct {
	Action Action
}

func (e *MissingReason) Error() string {
	return fmt.Sprintf("%s requires a reason", e.Action)
}

// IntegrityMismatch reports differing checksums across a physical move or copy.
// The operation that produced it has already been rolled back.
type IntegrityMismatch struct {
	Path   string
	Before string
	After  string
}

func (e *IntegrityMismatch) Error() string {
	return fmt.Sprintf("integrity mismatch at %s: checksum before %s, after %s", e.Path, short(e.Before), short(e.After))
}

// OrphanedPublicFile reports a public file with no published record. It is
// never deleted automatically.
type OrphanedPublicFile struct {
	Path string
}

func (e *OrphanedPublicFile) Error() string {
	return fmt.Sprintf("orphaned public file %s has no published record", e.Path)
}

// StorageUnavailable wraps a filesystem or object store failure.
type StorageUnavailable struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageUnavailable) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	var su *StorageUnavailable
	if errors.As(err, &su) {
		return err
	}
	return &StorageUnavailable{Op: op, Path: path, Err: err}
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
