package doc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclife/internal/doc"
	"doclife/internal/testutil"
)

const (
	legacyPath    = "design/doc.md"
	canonicalPath = "architecture/design_doc/doc.md"
	legacyContent = "# Search design\n"
)

// legacy inserts a record at a path that predates the canonical layout,
// together with its working copy.
func (h *harness) legacy(id, filePath string, docType doc.DocumentType, stage doc.Stage) *doc.Document {
	h.t.Helper()
	now := h.clock.Now()
	d := &doc.Document{
		ID:           id,
		EntityType:   doc.EntityWorkItem,
		EntityID:     workItem,
		Category:     doc.CategoryFor(docType),
		DocumentType: docType,
		FilePath:     filePath,
		Title:        "Search design",
		ContentHash:  testutil.SHA256Hex([]byte(legacyContent)),
		Visibility:   doc.VisibilityPublic,
		Stage:        stage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if stage == doc.StagePublished {
		d.PublishedPath = filePath
		h.putPublic(filePath, legacyContent)
	}
	testutil.InsertLegacyDocument(h.t, h.db, d)
	h.workspace.AddFile(filePath, []byte(legacyContent))
	return d
}

func (h *harness) migrate(dryRun bool) *doc.MigrationReport {
	h.t.Helper()
	report, err := h.svc.MigratePaths(h.ctx, doc.MigrateRequest{DryRun: dryRun, Actor: alice})
	require.NoError(h.t, err)
	return report
}

func TestCanonicalTarget(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		docType doc.DocumentType
		want    string
	}{
		{name: "legacy", path: legacyPath, docType: doc.TypeDesignDoc, want: canonicalPath},
		{name: "canonical", path: canonicalPath, docType: doc.TypeDesignDoc},
		{name: "exception", path: "README.md", docType: doc.TypeInternalNote},
		{name: "wrong type directory", path: "architecture/adr/notes/x.md", docType: doc.TypeDesignDoc, want: "architecture/design_doc/notes/x.md"},
		{name: "wrong category", path: "guides/adr/x.md", docType: doc.TypeADR, want: "architecture/adr/x.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doc.CanonicalTarget(&doc.Document{FilePath: tt.path, DocumentType: tt.docType})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := doc.CanonicalTarget(&doc.Document{FilePath: "x/y.md", DocumentType: "memo"})
	assert.Error(t, err)
}

func TestMigratePaths_DryRun(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)
	h.add(doc.TypeUserGuide, "Getting Started", "ok")

	report := h.migrate(true)
	assert.True(t, report.DryRun)
	require.Len(t, report.Items, 1)
	assert.Equal(t, doc.MigrationItem{DocumentID: "legacy-1", From: legacyPath, To: canonicalPath, Status: doc.StatusPlanned}, report.Items[0])
	assert.Zero(t, report.Migrated)

	assert.Equal(t, legacyPath, h.get("legacy-1").FilePath)
	_, ok := h.workspace.Content(legacyPath)
	assert.True(t, ok)
}

func TestMigratePaths_Moves(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)

	report := h.migrate(false)
	assert.Equal(t, 1, report.Migrated)
	assert.Zero(t, report.Failed)
	assert.Equal(t, "20260302T090000Z", report.OperationID)

	d := h.get("legacy-1")
	assert.Equal(t, canonicalPath, d.FilePath)
	assert.Equal(t, doc.CategoryArchitecture, d.Category)
	assert.Equal(t, doc.StageDraft, d.Stage, "migration does not move the lifecycle")
	require.NoError(t, doc.Validate(d))

	content, ok := h.workspace.Content(canonicalPath)
	require.True(t, ok)
	assert.Equal(t, legacyContent, string(content))
	_, ok = h.workspace.Content(legacyPath)
	assert.False(t, ok)
	assert.Empty(t, h.backups.Paths(report.OperationID), "backups are dropped after commit")

	entries := h.audit("legacy-1")
	require.Len(t, entries, 1)
	assert.Equal(t, doc.ActionMigratePath, entries[0].Action)
	assert.Equal(t, legacyPath, entries[0].Details["from"])
	assert.Equal(t, canonicalPath, entries[0].Details["to"])
	assert.Equal(t, report.OperationID, entries[0].Details["operation"])

	again := h.migrate(false)
	assert.Empty(t, again.Items, "a second run finds nothing to move")
}

func TestMigratePaths_CorruptMoveRollsBack(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)
	h.legacy("legacy-2", "notes/adr.md", doc.TypeADR, doc.StageDraft)

	h.workspace.CorruptNextMove()
	report := h.migrate(false)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Migrated, "the batch continues past a failure")

	var failed doc.MigrationItem
	for _, item := range report.Items {
		if item.Status == doc.StatusFailed {
			failed = item
		}
	}
	var mismatch *doc.IntegrityMismatch
	require.ErrorAs(t, failed.Err, &mismatch)

	d := h.get(failed.DocumentID)
	assert.Equal(t, failed.From, d.FilePath, "the record keeps its old path")
	content, ok := h.workspace.Content(failed.From)
	require.True(t, ok, "the original is restored")
	assert.Equal(t, legacyContent, string(content))
	_, ok = h.workspace.Content(failed.To)
	assert.False(t, ok, "the corrupt copy is removed")
	for _, e := range h.audit(failed.DocumentID) {
		assert.NotEqual(t, doc.ActionMigratePath, e.Action)
	}
}

func TestMigratePaths_MoveFailure(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)

	h.workspace.FailNextMove(testutil.ErrInjected)
	report := h.migrate(false)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Items[0].Err, testutil.ErrInjected)

	assert.Equal(t, legacyPath, h.get("legacy-1").FilePath)
	assert.Equal(t, []string{legacyPath}, h.workspace.Paths())
}

func TestMigratePaths_CommitFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)

	h.store.FailNextUpdate(testutil.ErrInjected)
	report := h.migrate(false)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Items[0].Err, testutil.ErrInjected)

	assert.Equal(t, legacyPath, h.get("legacy-1").FilePath)
	assert.Equal(t, []string{legacyPath}, h.workspace.Paths())
}

func TestMigratePaths_TargetExists(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StageDraft)
	h.workspace.AddFile(canonicalPath, []byte("someone else"))

	report := h.migrate(false)
	require.Equal(t, 1, report.Failed)
	content, _ := h.workspace.Content(canonicalPath)
	assert.Equal(t, "someone else", string(content))
	content, _ = h.workspace.Content(legacyPath)
	assert.Equal(t, legacyContent, string(content))
}

func TestMigratePaths_PublishedDocumentIsRelocatedBySync(t *testing.T) {
	h := newHarness(t)
	h.legacy("legacy-1", legacyPath, doc.TypeDesignDoc, doc.StagePublished)

	report := h.migrate(false)
	require.Equal(t, 1, report.Migrated)
	d := h.get("legacy-1")
	assert.Equal(t, canonicalPath, d.FilePath)
	assert.Equal(t, legacyPath, d.PublishedPath, "the public copy is not touched by migration")

	sync := h.sync(doc.SyncRequest{Actor: alice})
	item := itemFor(sync, "legacy-1")
	assert.Equal(t, doc.DriftRelocated, item.Drift)
	assert.Equal(t, doc.StatusCorrected, item.Status)

	d = h.get("legacy-1")
	assert.Equal(t, canonicalPath, d.PublishedPath)
	_, ok := h.publicContent(legacyPath)
	assert.False(t, ok)
	body, ok := h.publicContent(canonicalPath)
	require.True(t, ok)
	assert.Equal(t, legacyContent, body)
	h.invariant()
}
