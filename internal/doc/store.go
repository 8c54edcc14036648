package doc

import "context"

// Store persists documents and their audit log. Every write runs Validate and
// commits the record together with its audit entries in one transaction, so
// a transition and its audit line land or fail as a unit.
type Store interface {
	// CreateDocument inserts a new document with its initial audit entries.
	CreateDocument(ctx context.Context, d *Document, entries ...*AuditEntry) error

	// UpdateDocument replaces the stored record (including reviewer
	// assignments) and appends entries. Returns ErrNotFound for unknown IDs.
	UpdateDocument(ctx context.Context, d *Document, entries ...*AuditEntry) error

	// AppendAudit appends entries that do not change the record.
	AppendAudit(ctx context.Context, entries ...*AuditEntry) error

	// GetDocument returns ErrNotFound when no document has the ID.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// FindDocumentByPath returns nil when no document has the file path.
	FindDocumentByPath(ctx context.Context, filePath string) (*Document, error)

	// ListDocuments returns matching documents ordered by file path.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error)

	// ListAudit returns a document's entries in the order they were written.
	ListAudit(ctx context.Context, documentID string) ([]*AuditEntry, error)

	// Close releases the underlying connection.
	Close() error
}

// WorkItems is the boundary to the work-item engine: entity existence checks
// and the current phase of a work item.
type WorkItems interface {
	// EntityExists reports whether (entityType, entityID) names a live entity.
	EntityExists(ctx context.Context, entityType, entityID string) (bool, error)

	// WorkItemPhase returns the current phase, or "" if the work item has none.
	WorkItemPhase(ctx context.Context, workItemID string) (Phase, error)
}

// PhaseChange is delivered by the work-item engine when a work item moves phase.
type PhaseChange struct {
	WorkItemID string
	NewPhase   Phase
}
