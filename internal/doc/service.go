package doc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ExpiryAction is what ExpireReviews does with a review that outlived the
// configured timeout.
type ExpiryAction string

const (
	ExpiryNone     ExpiryAction = "none"
	ExpiryEscalate ExpiryAction = "escalate"
	ExpiryReject   ExpiryAction = "reject"
)

// Valid reports whether a is a known expiry action.
func (a ExpiryAction) Valid() bool {
	switch a {
	case ExpiryNone, ExpiryEscalate, ExpiryReject:
		return true
	}
	return false
}

// Options tune service behaviour.
type Options struct {
	RequireUnpublishReason bool
	ReviewTimeout          time.Duration // zero disables expiry
	ExpiryAction           ExpiryAction
	SyncWorkers            int
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Store     Store
	WorkItems WorkItems
	Workspace Workspace
	Mirror    Mirror
	Backups   BackupStore
	Ignore    PathMatcher // public paths excluded from orphan detection; may be nil
	Policy    Policy
	Logger    Logger
	Clock     Clock
	IDs       IDGenerator // document IDs
	AuditIDs  IDGenerator // audit entry IDs
}

// Service is the façade callers use: it loads records, runs transitions
// through the LifecycleEngine, consults the auto-publish rules, drives the
// SyncEngine and commits each outcome in a single store write.
//
// Every mutating call holds the document's lock for its whole duration.
// Physical file operations always happen before the record commit.
type Service struct {
	store     Store
	workItems WorkItems
	workspace Workspace
	lifecycle *LifecycleEngine
	syncer    *SyncEngine
	migrator  *Migrator
	policy    Policy
	logger    Logger
	clock     Clock
	ids       IDGenerator
	locks     *keyedMutex
	opts      Options
}

// NewService creates a Service with the provided dependencies.
func NewService(deps Deps, opts Options) *Service {
	if opts.ExpiryAction == "" {
		opts.ExpiryAction = ExpiryNone
	}
	if opts.SyncWorkers <= 0 {
		opts.SyncWorkers = 4
	}
	return &Service{
		store:     deps.Store,
		workItems: deps.WorkItems,
		workspace: deps.Workspace,
		lifecycle: NewLifecycleEngine(deps.Policy, opts.RequireUnpublishReason, deps.Clock, deps.AuditIDs),
		syncer:    NewSyncEngine(deps.Workspace, deps.Mirror, deps.Ignore, deps.Logger),
		migrator:  NewMigrator(deps.Workspace, deps.Backups, deps.Logger),
		policy:    deps.Policy,
		logger:    deps.Logger,
		clock:     deps.Clock,
		ids:       deps.IDs,
		locks:     newKeyedMutex(),
		opts:      opts,
	}
}

// AddRequest describes a new document.
type AddRequest struct {
	EntityType   string
	EntityID     string
	Category     Category // defaults to the type's catalog category
	DocumentType DocumentType
	Title        string
	Description  string
	Content      []byte
	FilePath     string     // optional; built from the title when empty
	Visibility   Visibility // defaults to the type's catalog visibility
	Actor        string

	// Resolver picks the path when FilePath is not canonical. Nil accepts
	// the suggested canonical path.
	Resolver PathResolver
}

// AddDocument writes the working copy and creates a DRAFT record for it.
func (s *Service) AddDocument(ctx context.Context, req AddRequest) (*Document, error) {
	spec, ok := SpecFor(req.DocumentType)
	if !ok {
		return nil, fmt.Errorf("unknown document type %q", req.DocumentType)
	}
	category := req.Category
	if category == "" {
		category = spec.Category
	}
	if category != spec.Category {
		return nil, fmt.Errorf("document type %s belongs to category %s, not %s", req.DocumentType, spec.Category, category)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = spec.Visibility
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("unknown visibility %q", visibility)
	}

	exists, err := s.workItems.EntityExists(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("checking owning entity: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%s %s: %w", req.EntityType, req.EntityID, ErrEntityNotFound)
	}

	filePath, err := s.resolvePath(req, category)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("path:" + filePath)
	defer unlock()

	existing, err := s.store.FindDocumentByPath(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("checking for existing document: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s is tracked by document %s: %w", filePath, existing.ID, ErrPathTaken)
	}
	if _, err := s.workspace.Stat(filePath); err == nil {
		return nil, fmt.Errorf("%s already exists in the workspace: %w", filePath, ErrPathTaken)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, storageErr("stat", filePath, err)
	}

	if err := s.workspace.Write(filePath, bytes.NewReader(req.Content)); err != nil {
		return nil, storageErr("write", filePath, err)
	}
	hash, err := Checksum(bytes.NewReader(req.Content))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	eligibility := DecideAutoPublish(RuleInput{DocumentType: req.DocumentType, Visibility: visibility, Policy: s.policy})
	d := &Document{
		ID:              s.ids.New(),
		EntityType:      req.EntityType,
		EntityID:        req.EntityID,
		Category:        category,
		DocumentType:    req.DocumentType,
		FilePath:        filePath,
		Title:           req.Title,
		Description:     req.Description,
		ContentHash:     hash,
		Visibility:      visibility,
		Stage:           StageDraft,
		AutoPublish:     eligibility.Eligible(),
		AutoPublishRule: eligibility.Rule,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	entry := s.lifecycle.entry(d, ActionCreate, req.Actor, "", StageDraft,
		map[string]string{"path": filePath, "checksum": hash}, "")

	if err := s.store.CreateDocument(ctx, d, entry); err != nil {
		if rmErr := s.workspace.Remove(filePath); rmErr != nil {
			s.logger.Warn("removing working copy after failed create", "path", filePath, "error", rmErr)
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.logger.Info("document added", "document", d.ID, "path", filePath, "type", d.DocumentType)
	return d, nil
}

// resolvePath applies the guidance layer: a non-canonical path is offered
// back as a suggestion and whatever the resolver picks must pass the gate.
func (s *Service) resolvePath(req AddRequest, category Category) (string, error) {
	req.FilePath = norm.NFC.String(req.FilePath)
	if req.FilePath == "" {
		return ConstructPath(category, req.DocumentType, Slugify(req.Title)+".md"), nil
	}
	suggestion := SuggestPath(req.FilePath, category, req.DocumentType)
	if suggestion == nil {
		return req.FilePath, nil
	}
	resolver := req.Resolver
	if resolver == nil {
		resolver = AcceptSuggestion
	}
	chosen, err := resolver.ResolvePath(*suggestion)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if err := ValidatePath(chosen, category, req.DocumentType); err != nil {
		return "", err
	}
	if chosen != req.FilePath {
		s.logger.Info("path corrected", "supplied", req.FilePath, "path", chosen)
	}
	return chosen, nil
}

// SubmitReview moves a DRAFT into REVIEW with the given reviewers assigned.
// Types that need no reviewers go straight to APPROVED when none are named.
func (s *Service) SubmitReview(ctx context.Context, id, actor string, reviewers ...string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	hasContent, err := s.hasContent(d.FilePath)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{
		Trigger:    TriggerSubmitReview,
		Actor:      actor,
		Reviewers:  reviewers,
		HasContent: hasContent,
	})
	if err != nil {
		return nil, err
	}
	return s.commitTransition(ctx, tr)
}

// Approve records reviewerID's approval. The document reaches APPROVED on the
// approval that satisfies the consensus threshold, and the auto-publish rules
// run in the same operation.
func (s *Service) Approve(ctx context.Context, id, reviewerID, comment string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerApprove, Actor: reviewerID, Comment: comment})
	if err != nil {
		return nil, err
	}
	return s.commitTransition(ctx, tr)
}

// Reject records reviewerID's rejection. The document passes through
// REJECTED and is persisted as DRAFT.
func (s *Service) Reject(ctx context.Context, id, reviewerID, reason string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerReject, Actor: reviewerID, Reason: reason})
	if err != nil {
		return nil, err
	}
	return s.commitTransition(ctx, tr)
}

// Archive retires a document from any stage. A published copy is removed first.
func (s *Service) Archive(ctx context.Context, id, actor, reason string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerArchive, Actor: actor, Reason: reason})
	if err != nil {
		return nil, err
	}
	if d.Stage == StagePublished {
		if err := s.syncer.Unpublish(d.PublishedPath); err != nil {
			return nil, fmt.Errorf("removing public copy: %w", err)
		}
	}
	return s.commitTransition(ctx, tr)
}

// Unarchive restores the stage held before archiving. Returning to PUBLISHED
// copies the document out again.
func (s *Service) Unarchive(ctx context.Context, id, actor string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerUnarchive, Actor: actor})
	if err != nil {
		return nil, err
	}
	if tr.Document.Stage == StagePublished {
		return s.publishAndCommit(ctx, tr)
	}
	return s.commitTransition(ctx, tr)
}

// GetDocument returns the record with the given ID.
func (s *Service) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.load(ctx, id)
}

// ListDocuments returns records matching filter, ordered by path.
func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error) {
	docs, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// ListAudit returns the full history of a document in write order.
func (s *Service) ListAudit(ctx context.Context, id string) ([]*AuditEntry, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAudit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return entries, nil
}

// commitTransition persists a transition. When review completes on APPROVED
// the auto-publish rules are consulted and a resulting publish is committed
// in the same write.
func (s *Service) commitTransition(ctx context.Context, tr *Transition) (*Document, error) {
	if tr.Document.Stage == StageApproved && (tr.From == StageReview || tr.From == StageDraft) {
		return s.approveAndMaybePublish(ctx, tr)
	}
	if err := s.store.UpdateDocument(ctx, tr.Document, tr.Entries...); err != nil {
		return nil, fmt.Errorf("committing %s: %w", tr.Document.Stage, err)
	}
	s.logTransition(tr)
	return tr.Document, nil
}

func (s *Service) logTransition(tr *Transition) {
	for _, e := range tr.Entries {
		s.logger.Info("document transition",
			"document", e.DocumentID, "action", e.Action, "actor", e.Actor,
			"from", e.FromState, "to", e.ToState)
	}
}

func (s *Service) load(ctx context.Context, id string) (*Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return d, nil
}

func (s *Service) hasContent(relPath string) (bool, error) {
	info, err := s.workspace.Stat(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, storageErr("stat", relPath, err)
	}
	return info.Size() > 0, nil
}
