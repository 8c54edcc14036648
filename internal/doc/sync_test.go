package doc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclife/internal/doc"
	"doclife/internal/testutil"
)

func (h *harness) putPublic(relPath, content string) {
	h.t.Helper()
	require.NoError(h.t, h.public.Put(relPath, strings.NewReader(content)))
}

func (h *harness) sync(req doc.SyncRequest) *doc.SyncReport {
	h.t.Helper()
	report, err := h.svc.Sync(h.ctx, req)
	require.NoError(h.t, err)
	return report
}

func itemFor(report *doc.SyncReport, id string) doc.SyncItem {
	for _, item := range report.Items {
		if item.DocumentID == id {
			return item
		}
	}
	return doc.SyncItem{}
}

func TestSync_InSyncIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.approved(doc.TypeUserGuide, "Getting Started", "a")
	h.approved(doc.TypeTutorial, "First Steps", "b")
	h.add(doc.TypeADR, "Draft", "c")

	for range 2 {
		report := h.sync(doc.SyncRequest{Actor: alice})
		assert.Equal(t, 2, report.Checked)
		assert.Equal(t, 2, report.InSync)
		assert.Zero(t, report.Corrected)
		assert.Zero(t, report.Failed)
		assert.Zero(t, report.Orphans)
	}
	assert.Equal(t, 2, h.mirror.Puts(), "an in-sync pass copies nothing")
}

func TestSync_RepairsDrift(t *testing.T) {
	tests := []struct {
		name      string
		drift     func(h *harness, d *doc.Document)
		wantDrift doc.DriftKind
		wantBody  string
		wantHash  string
		wantAct   doc.Action
	}{
		{
			name:      "tampered public copy",
			drift:     func(h *harness, d *doc.Document) { h.putPublic(d.PublishedPath, "tampered") },
			wantDrift: doc.DriftMismatch,
			wantBody:  "# Start\n",
			wantHash:  testutil.SHA256Hex([]byte("# Start\n")),
			wantAct:   doc.ActionSyncRepublish,
		},
		{
			name:      "missing public copy",
			drift:     func(h *harness, d *doc.Document) { require.NoError(h.t, h.public.Delete(d.PublishedPath)) },
			wantDrift: doc.DriftMissing,
			wantBody:  "# Start\n",
			wantHash:  testutil.SHA256Hex([]byte("# Start\n")),
			wantAct:   doc.ActionSyncRepublish,
		},
		{
			name:      "edited source",
			drift:     func(h *harness, d *doc.Document) { h.workspace.AddFile(d.FilePath, []byte("# Start v2\n")) },
			wantDrift: doc.DriftMismatch,
			wantBody:  "# Start v2\n",
			wantHash:  testutil.SHA256Hex([]byte("# Start v2\n")),
			wantAct:   doc.ActionSyncRepublish,
		},
		{
			name: "stale recorded hash",
			drift: func(h *harness, d *doc.Document) {
				h.workspace.AddFile(d.FilePath, []byte("both"))
				h.putPublic(d.PublishedPath, "both")
			},
			wantDrift: doc.DriftStaleHash,
			wantBody:  "both",
			wantHash:  testutil.SHA256Hex([]byte("both")),
			wantAct:   doc.ActionSyncRehash,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := h.approved(doc.TypeUserGuide, "Getting Started", "# Start\n")
			tt.drift(h, d)

			dry := h.sync(doc.SyncRequest{DryRun: true, Actor: alice})
			assert.Equal(t, 1, dry.Pending)
			assert.Zero(t, dry.Corrected)
			assert.Equal(t, tt.wantDrift, itemFor(dry, d.ID).Drift)
			assert.Equal(t, d.ContentHash, h.get(d.ID).ContentHash, "a dry run writes nothing")

			report := h.sync(doc.SyncRequest{Actor: alice})
			item := itemFor(report, d.ID)
			assert.Equal(t, tt.wantDrift, item.Drift)
			assert.Equal(t, doc.StatusCorrected, item.Status)
			assert.Equal(t, 1, report.Corrected)

			stored := h.get(d.ID)
			assert.Equal(t, tt.wantHash, stored.ContentHash)
			body, ok := h.publicContent(stored.PublishedPath)
			require.True(t, ok)
			assert.Equal(t, tt.wantBody, body)

			entries := h.audit(d.ID)
			last := entries[len(entries)-1]
			assert.Equal(t, tt.wantAct, last.Action)
			assert.Equal(t, alice, last.Actor)
			assert.Equal(t, string(tt.wantDrift), last.Details["drift"])

			again := h.sync(doc.SyncRequest{Actor: alice})
			assert.Zero(t, again.Corrected, "the second pass finds nothing to fix")
			assert.Equal(t, 1, again.InSync)
			h.invariant()
		})
	}
}

func TestSync_SourceMissing(t *testing.T) {
	h := newHarness(t)
	d := h.approved(doc.TypeUserGuide, "Getting Started", "# Start\n")
	require.NoError(t, h.workspace.Remove(d.FilePath))

	report := h.sync(doc.SyncRequest{})
	item := itemFor(report, d.ID)
	assert.Equal(t, doc.DriftSourceMissing, item.Drift)
	assert.Equal(t, doc.StatusFailed, item.Status)
	assert.Error(t, item.Err)
	assert.Equal(t, 1, report.Failed)

	_, ok := h.publicContent(d.PublishedPath)
	assert.True(t, ok, "the public copy is left alone")
}

func TestSync_RepairFailureIsReported(t *testing.T) {
	h := newHarness(t)
	d := h.approved(doc.TypeUserGuide, "Getting Started", "# Start\n")
	other := h.approved(doc.TypeTutorial, "First Steps", "# Steps\n")
	require.NoError(t, h.public.Delete(d.PublishedPath))
	require.NoError(t, h.public.Delete(other.PublishedPath))

	h.mirror.CorruptNextPut()
	report := h.sync(doc.SyncRequest{})
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Corrected, "one failure does not stop the pass")

	var failed doc.SyncItem
	for _, item := range report.Items {
		if item.Status == doc.StatusFailed {
			failed = item
		}
	}
	var mismatch *doc.IntegrityMismatch
	require.ErrorAs(t, failed.Err, &mismatch)
	_, ok := h.publicContent(h.get(failed.DocumentID).PublishedPath)
	assert.False(t, ok)
}

func TestSync_Orphans(t *testing.T) {
	h := newHarness(t, withIgnore(".DS_Store", "drafts/*"))
	d := h.approved(doc.TypeUserGuide, "Getting Started", "# Start\n")
	h.putPublic("guides/user_guide/retired.md", "old")
	h.putPublic("reference/api_doc/v1.md", "old api")
	h.putPublic("guides/.DS_Store", "junk")
	h.putPublic("drafts/wip.md", "junk")

	report := h.sync(doc.SyncRequest{})
	assert.Equal(t, 2, report.Orphans)
	assert.Equal(t, 1, report.InSync)

	var orphans []string
	for _, item := range report.Items {
		if item.Drift != doc.DriftOrphan {
			continue
		}
		assert.Equal(t, doc.StatusReported, item.Status)
		assert.Empty(t, item.DocumentID)
		var orphan *doc.OrphanedPublicFile
		assert.ErrorAs(t, item.Err, &orphan)
		orphans = append(orphans, item.Path)
	}
	assert.ElementsMatch(t, []string{"guides/user_guide/retired.md", "reference/api_doc/v1.md"}, orphans)

	_, ok := h.publicContent("guides/user_guide/retired.md")
	assert.True(t, ok, "orphans are never deleted")
	assert.Equal(t, []doc.Action{doc.ActionCreate, doc.ActionSubmitReview, doc.ActionApprove, doc.ActionPublish}, h.actions(d.ID))
}

func TestSync_Scope(t *testing.T) {
	h := newHarness(t)
	guide := h.approved(doc.TypeUserGuide, "Getting Started", "a")
	api := h.approved(doc.TypeAPIDoc, "Search API", "b")
	h.putPublic(guide.PublishedPath, "tampered")
	h.putPublic(api.PublishedPath, "tampered")
	h.putPublic("guides/tutorial/orphan.md", "x")
	h.putPublic("reference/glossary/orphan.md", "x")

	report := h.sync(doc.SyncRequest{Category: doc.CategoryGuides})
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, report.Orphans)
	body, _ := h.publicContent(api.PublishedPath)
	assert.Equal(t, "tampered", body, "out of scope documents are not touched")

	report = h.sync(doc.SyncRequest{DocumentType: doc.TypeAPIDoc})
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Corrected)
	assert.Zero(t, report.Orphans)

	report = h.sync(doc.SyncRequest{Category: doc.CategoryGuides, DocumentType: doc.TypeAPIDoc})
	assert.Zero(t, report.Checked)
}

func TestSync_ConcurrentWorkers(t *testing.T) {
	h := newHarness(t, withOptions(func(o *doc.Options) { o.SyncWorkers = 3 }))
	var docs []*doc.Document
	for _, title := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		d := h.approved(doc.TypeUserGuide, title, "# "+title)
		require.NoError(t, h.public.Delete(d.PublishedPath))
		docs = append(docs, d)
	}

	report := h.sync(doc.SyncRequest{})
	assert.Equal(t, len(docs), report.Corrected)
	h.invariant()
}
