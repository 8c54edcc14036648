package doc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SyncRequest scopes a sync pass. Empty filters match every document.
type SyncRequest struct {
	DryRun       bool
	Category     Category
	DocumentType DocumentType
	Actor        string
}

// SyncItem is the per-path result of a sync pass.
type SyncItem struct {
	DocumentID string // empty for orphans
	Path       string
	Drift      DriftKind
	Status     ItemStatus
	Err        error
}

// SyncReport is the aggregate result of a sync pass.
type SyncReport struct {
	DryRun    bool
	Items     []SyncItem
	Checked   int
	InSync    int
	Corrected int
	Pending   int // repairable drift left alone by a dry run
	Failed    int
	Orphans   int
}

func (r *SyncReport) add(item SyncItem) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case StatusOK:
		r.InSync++
	case StatusCorrected:
		r.Corrected++
	case StatusPlanned:
		r.Pending++
	case StatusFailed:
		r.Failed++
	}
	if item.Drift == DriftOrphan {
		r.Orphans++
	} else {
		r.Checked++
	}
}

// Sync compares every matching PUBLISHED record with the private and public
// copies and, unless DryRun is set, repairs what it finds: missing or stale
// public copies are republished and stale hashes rewritten. Public files with
// no published record are reported and never deleted.
//
// Documents are processed in parallel, each under its own lock.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncReport, error) {
	published, err := s.store.ListDocuments(ctx, DocumentFilter{Stage: StagePublished})
	if err != nil {
		return nil, fmt.Errorf("listing published documents: %w", err)
	}

	var targets []*Document
	for _, d := range published {
		if matchesScope(d.Category, d.DocumentType, req.Category, req.DocumentType) {
			targets = append(targets, d)
		}
	}

	items := make([]SyncItem, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SyncWorkers)
	for i, d := range targets {
		g.Go(func() error {
			items[i] = s.syncOne(gctx, d.ID, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &SyncReport{DryRun: req.DryRun}
	for _, item := range items {
		report.add(item)
	}

	// Repairs may have moved public copies, so orphans are judged against
	// the records as they stand now.
	published, err = s.store.ListDocuments(ctx, DocumentFilter{Stage: StagePublished})
	if err != nil {
		return nil, fmt.Errorf("listing published documents: %w", err)
	}
	publicPaths := make(map[string]bool, len(published))
	for _, d := range published {
		publicPaths[d.PublishedPath] = true
	}
	orphans, err := s.syncer.Orphans(publicPaths)
	if err != nil {
		return nil, fmt.Errorf("listing public files: %w", err)
	}
	for _, p := range orphans {
		if req.Category != "" || req.DocumentType != "" {
			parts, perr := ParsePath(p)
			if perr != nil || !matchesScope(parts.Category, parts.DocumentType, req.Category, req.DocumentType) {
				continue
			}
		}
		s.logger.Warn("orphaned public file", "path", p)
		report.add(SyncItem{Path: p, Drift: DriftOrphan, Status: StatusReported, Err: &OrphanedPublicFile{Path: p}})
	}

	s.logger.Info("sync complete", "dry_run", req.DryRun, "checked", report.Checked,
		"corrected", report.Corrected, "failed", report.Failed, "orphans", report.Orphans)
	return report, nil
}

func (s *Service) syncOne(ctx context.Context, id string, req SyncRequest) SyncItem {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return SyncItem{DocumentID: id, Status: StatusFailed, Err: err}
	}
	item := SyncItem{DocumentID: id, Path: d.FilePath}
	if d.Stage != StagePublished {
		// Unpublished since the listing.
		item.Status = StatusSkipped
		return item
	}

	drift, err := s.syncer.Check(d)
	if err != nil {
		item.Status = StatusFailed
		item.Err = err
		return item
	}
	item.Drift = drift.Kind

	switch {
	case drift.Kind == DriftNone:
		item.Status = StatusOK
	case drift.Kind == DriftSourceMissing:
		item.Status = StatusFailed
		item.Err = fmt.Errorf("source %s is missing; restore it or unpublish the document", d.FilePath)
	case req.DryRun:
		item.Status = StatusPlanned
	default:
		if err := s.repair(ctx, d, drift, req.Actor); err != nil {
			item.Status = StatusFailed
			item.Err = err
		} else {
			item.Status = StatusCorrected
		}
	}
	return item
}

// repair corrects one drifted record. Republishing goes through the same
// verified copy as a publish; the record commit is the last step.
func (s *Service) repair(ctx context.Context, d *Document, drift Drift, actor string) error {
	next := d.Clone()
	next.UpdatedAt = s.clock.Now()
	details := map[string]string{"drift": string(drift.Kind), "recorded_checksum": d.ContentHash}

	if drift.Kind == DriftStaleHash {
		next.ContentHash = drift.SourceChecksum
		details["checksum"] = drift.SourceChecksum
		entry := s.lifecycle.Record(next, ActionSyncRehash, actor, details, "")
		if err := s.store.UpdateDocument(ctx, next, entry); err != nil {
			return fmt.Errorf("committing rehash: %w", err)
		}
		s.logger.Info("sync rehashed", "document", d.ID, "checksum", drift.SourceChecksum)
		return nil
	}

	res, err := s.syncer.Publish(next)
	if err != nil {
		return fmt.Errorf("republishing: %w", err)
	}
	next.PublishedPath = res.PublishedPath
	next.PublishedAt = s.clock.Now()
	next.ContentHash = res.Checksum
	details["checksum"] = res.Checksum
	details["published_path"] = res.PublishedPath
	if drift.Kind == DriftRelocated {
		details["previous_path"] = d.PublishedPath
	}
	entry := s.lifecycle.Record(next, ActionSyncRepublish, actor, details, "")
	if err := s.store.UpdateDocument(ctx, next, entry); err != nil {
		s.syncer.Revert(res)
		return fmt.Errorf("committing republish: %w", err)
	}
	if drift.Kind == DriftRelocated {
		if err := s.syncer.Unpublish(d.PublishedPath); err != nil {
			s.logger.Warn("removing relocated public copy failed", "path", d.PublishedPath, "error", err)
		}
	}
	s.logger.Info("sync republished", "document", d.ID, "drift", drift.Kind, "checksum", res.Checksum)
	return nil
}

// MigrateRequest scopes a path migration.
type MigrateRequest struct {
	DryRun bool
	Actor  string
}

// MigratePaths moves every non-canonical working copy to its canonical path.
// Each record is handled on its own: a failed move is rolled back from the
// backup and reported, and the batch continues. Backups are keyed by the
// operation's start time.
func (s *Service) MigratePaths(ctx context.Context, req MigrateRequest) (*MigrationReport, error) {
	docs, err := s.store.ListDocuments(ctx, DocumentFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	report := &MigrationReport{
		OperationID: s.clock.Now().Format(OperationIDFormat),
		DryRun:      req.DryRun,
	}

	for _, d := range docs {
		target, err := CanonicalTarget(d)
		if err != nil {
			report.add(MigrationItem{DocumentID: d.ID, From: d.FilePath, Status: StatusSkipped, Err: err})
			continue
		}
		if target == "" {
			continue
		}
		if req.DryRun {
			report.add(MigrationItem{DocumentID: d.ID, From: d.FilePath, To: target, Status: StatusPlanned})
			continue
		}
		report.add(s.migrateOne(ctx, report.OperationID, d.ID, target, req.Actor))
	}

	s.logger.Info("path migration complete", "operation", report.OperationID,
		"migrated", report.Migrated, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

func (s *Service) migrateOne(ctx context.Context, opID, id, target, actor string) MigrationItem {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return MigrationItem{DocumentID: id, To: target, Status: StatusFailed, Err: err}
	}
	item := MigrationItem{DocumentID: id, From: d.FilePath, To: target}

	checksum, err := s.migrator.Move(opID, d.FilePath, target)
	if err != nil {
		s.logger.Error("path migration failed", "document", id, "from", d.FilePath, "to", target, "error", err)
		item.Status = StatusFailed
		item.Err = err
		return item
	}

	next := d.Clone()
	next.FilePath = target
	next.Category = CategoryFor(d.DocumentType)
	next.ContentHash = checksum
	next.UpdatedAt = s.clock.Now()
	entry := s.lifecycle.Record(next, ActionMigratePath, actor, map[string]string{
		"from":      d.FilePath,
		"to":        target,
		"checksum":  checksum,
		"operation": opID,
	}, "")
	if err := s.store.UpdateDocument(ctx, next, entry); err != nil {
		if rerr := s.migrator.Rollback(opID, d.FilePath, target); rerr != nil {
			s.logger.Error("rollback after failed commit", "document", id, "error", rerr)
		}
		item.Status = StatusFailed
		item.Err = fmt.Errorf("committing migration: %w", err)
		return item
	}
	s.migrator.Discard(opID, d.FilePath)

	s.logger.Info("path migrated", "document", id, "from", d.FilePath, "to", target)
	item.Status = StatusMigrated
	return item
}

func matchesScope(category Category, docType DocumentType, wantCategory Category, wantType DocumentType) bool {
	if wantCategory != "" && category != wantCategory {
		return false
	}
	if wantType != "" && docType != wantType {
		return false
	}
	return true
}
