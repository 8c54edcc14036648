package doc_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"doclife/internal/backup"
	"doclife/internal/database"
	"doclife/internal/doc"
	"doclife/internal/mirror"
	"doclife/internal/testutil"
)

const (
	workItem = "W-1"
	alice    = "alice"
	bob      = "bob"
	carol    = "carol"
)

// harness wires a Service over an in-memory database, workspace, mirror and
// backup store, with fault injection on each.
type harness struct {
	t         *testing.T
	ctx       context.Context
	svc       *doc.Service
	db        *database.SQLiteDatabase
	store     *testutil.FaultyStore
	workspace *testutil.MemoryWorkspace
	public    *mirror.MemoryMirror
	mirror    *testutil.FaultyMirror
	backups   *backup.MemoryStore
	clock     *testutil.StubClock
}

type harnessOption func(*doc.Deps, *doc.Options)

func withPolicy(p doc.Policy) harnessOption {
	return func(d *doc.Deps, _ *doc.Options) { d.Policy = p }
}

func withOptions(fn func(*doc.Options)) harnessOption {
	return func(_ *doc.Deps, o *doc.Options) { fn(o) }
}

func withIgnore(patterns ...string) harnessOption {
	return func(d *doc.Deps, _ *doc.Options) { d.Ignore = mirror.NewIgnoreMatcher(patterns) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)
	require.NoError(t, db.RegisterEntity(ctx, doc.EntityWorkItem, workItem, "Search rewrite"))
	require.NoError(t, db.RegisterEntity(ctx, doc.EntityProject, "P-1", "Docs platform"))

	h := &harness{
		t:         t,
		ctx:       ctx,
		db:        db,
		store:     testutil.NewFaultyStore(db),
		workspace: testutil.NewMemoryWorkspace(),
		public:    mirror.NewMemoryMirror(),
		backups:   backup.NewMemoryStore(),
		clock:     clock,
	}
	h.mirror = testutil.NewFaultyMirror(h.public)

	deps := doc.Deps{
		Store:     h.store,
		WorkItems: db,
		Workspace: h.workspace,
		Mirror:    h.mirror,
		Backups:   h.backups,
		Logger:    doc.NewNopLogger(),
		Clock:     clock,
		IDs:       testutil.NewStubIDGenerator("doc"),
		AuditIDs:  testutil.NewStubIDGenerator("audit"),
	}
	options := doc.Options{}
	for _, opt := range opts {
		opt(&deps, &options)
	}
	h.svc = doc.NewService(deps, options)
	return h
}

// add creates a document owned by the work item.
func (h *harness) add(docType doc.DocumentType, title, content string) *doc.Document {
	h.t.Helper()
	d, err := h.svc.AddDocument(h.ctx, doc.AddRequest{
		EntityType:   doc.EntityWorkItem,
		EntityID:     workItem,
		DocumentType: docType,
		Title:        title,
		Content:      []byte(content),
		Actor:        alice,
	})
	require.NoError(h.t, err)
	return d
}

// approved drives a new document through review to APPROVED or beyond.
func (h *harness) approved(docType doc.DocumentType, title, content string) *doc.Document {
	h.t.Helper()
	d := h.add(docType, title, content)
	_, err := h.svc.SubmitReview(h.ctx, d.ID, alice)
	require.NoError(h.t, err)
	for _, r := range []string{bob, carol}[:doc.MinReviewers(docType)] {
		_, err = h.svc.Approve(h.ctx, d.ID, r, "")
		require.NoError(h.t, err)
	}
	return h.get(d.ID)
}

func (h *harness) get(id string) *doc.Document {
	h.t.Helper()
	d, err := h.svc.GetDocument(h.ctx, id)
	require.NoError(h.t, err)
	return d
}

func (h *harness) audit(id string) []*doc.AuditEntry {
	h.t.Helper()
	entries, err := h.svc.ListAudit(h.ctx, id)
	require.NoError(h.t, err)
	return entries
}

func (h *harness) actions(id string) []doc.Action {
	h.t.Helper()
	var out []doc.Action
	for _, e := range h.audit(id) {
		out = append(out, e.Action)
	}
	return out
}

// publicContent returns the public copy at relPath, or false if absent.
func (h *harness) publicContent(relPath string) (string, bool) {
	h.t.Helper()
	r, err := h.public.Open(relPath)
	if err != nil {
		return "", false
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(h.t, err)
	return string(data), true
}

// invariant checks the gate and publication invariants of every stored record.
func (h *harness) invariant() {
	h.t.Helper()
	docs, err := h.svc.ListDocuments(h.ctx, doc.DocumentFilter{})
	require.NoError(h.t, err)
	for _, d := range docs {
		if doc.IsCanonical(d.FilePath, d.Category, d.DocumentType) || doc.IsExceptionPath(d.FilePath) {
			require.NoError(h.t, doc.Validate(d), "document %s", d.ID)
		}
		if d.Stage == doc.StagePublished {
			content, ok := h.publicContent(d.PublishedPath)
			require.True(h.t, ok, "published document %s has no public copy", d.ID)
			require.Equal(h.t, d.ContentHash, testutil.SHA256Hex([]byte(content)))
		}
	}
}
