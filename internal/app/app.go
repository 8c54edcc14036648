package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doclife/internal/backup"
	"doclife/internal/config"
	"doclife/internal/database"
	"doclife/internal/doc"
	"doclife/internal/encryption"
	"doclife/internal/mirror"
	"doclife/internal/policy"
	"doclife/internal/workspace"
)

// metadataOperation keys database snapshots in the backup store.
const metadataOperation = "metadata"

// DocLifeApp is the application layer between the CLI and doc.Service.
// It constructs all dependencies from config, tracks the CLI operation, and
// snapshots the metadata database on Close.
type DocLifeApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	mirror    doc.Mirror
	backups   doc.BackupStore
	encryptor encryption.Encryptor
	service   *doc.Service
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
}

// NewDocLifeApp creates a fully wired DocLifeApp from the given config.
// operation identifies the CLI command being run (e.g. "Publish", "Sync").
// The caller must call Close when done.
func NewDocLifeApp(ctx context.Context, cfg *config.Config, operation string) (*DocLifeApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	clock := doc.RealClock{}

	ws, err := workspace.NewOSWorkspace(cfg.Workspace.PrivateRoot)
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}

	m, err := mirror.NewMirrorFromConfig(ctx, cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	var enc encryption.Encryptor
	if cfg.Backup.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("backup encryption is enabled but no key pair exists: run 'doclife keys init'")
		}
	}
	backups, err := backup.NewStoreFromConfig(cfg.Backup, enc)
	if err != nil {
		return nil, fmt.Errorf("creating backup store: %w", err)
	}

	pol, err := policy.LoadFile(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	ignore, err := ignorePatterns(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.ProjectID, clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	opID := clock.Now().Format(doc.OperationIDFormat)
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := doc.NewService(doc.Deps{
		Store:     db,
		WorkItems: db,
		Workspace: ws,
		Mirror:    m,
		Backups:   backups,
		Ignore:    mirror.NewIgnoreMatcher(ignore),
		Policy:    pol,
		Logger:    &slogAdapter{l: logger},
		Clock:     clock,
		IDs:       doc.UUIDGenerator{},
		AuditIDs:  doc.NewULIDGenerator(),
	}, doc.Options{
		RequireUnpublishReason: cfg.Review.RequireUnpublishReason,
		ReviewTimeout:          time.Duration(cfg.Review.TimeoutHours) * time.Hour,
		ExpiryAction:           doc.ExpiryAction(cfg.Review.ExpiryAction),
		SyncWorkers:            cfg.Sync.Workers,
	})

	return &DocLifeApp{
		cfg:       cfg,
		db:        db,
		mirror:    m,
		backups:   backups,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// ignorePatterns combines the configured sync ignore patterns with the
// project's ignore file.
func ignorePatterns(cfg *config.Config) ([]string, error) {
	patterns := append([]string(nil), cfg.Sync.Ignore...)
	if cfg.BaseDir == "" {
		return patterns, nil
	}
	fromFile, err := mirror.ParseIgnoreFile(filepath.Join(cfg.BaseDir, mirror.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return append(patterns, fromFile...), nil
}

// Actor returns the configured default actor, or the login name.
func (a *DocLifeApp) Actor() string {
	if a.cfg.Actor != "" {
		return a.cfg.Actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return doc.SystemActor
}

// UnlockBackups makes encrypted backups readable, which a migration needs to
// roll a failed move back. It is a no-op when backups are not encrypted.
func (a *DocLifeApp) UnlockBackups(passphrase string) error {
	if a.encryptor == nil {
		return nil
	}
	return a.encryptor.Unlock(passphrase)
}

// BackupsEncrypted reports whether backups need a passphrase to restore.
func (a *DocLifeApp) BackupsEncrypted() bool {
	return a.encryptor != nil
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only state-changing calls persist.
func (a *DocLifeApp) persistOperation(ctx context.Context, params ...string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = strings.Join(params, " ")
	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// mutate runs fn as a persisted operation and records its outcome.
func mutate[T any](ctx context.Context, a *DocLifeApp, params []string, fn func() (T, error)) (T, error) {
	var zero T
	if err := a.persistOperation(ctx, params...); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		a.op.Fail()
		return zero, err
	}
	return v, nil
}

// AddDocument writes a working copy and creates its record.
func (a *DocLifeApp) AddDocument(ctx context.Context, req doc.AddRequest) (*doc.Document, error) {
	if req.Actor == "" {
		req.Actor = a.Actor()
	}
	return mutate(ctx, a, []string{string(req.DocumentType), req.FilePath}, func() (*doc.Document, error) {
		return a.service.AddDocument(ctx, req)
	})
}

// ReadContent loads a document body from a local file, or stdin for "-".
func ReadContent(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return data, nil
}

// SubmitReview moves a draft into review.
func (a *DocLifeApp) SubmitReview(ctx context.Context, id string, reviewers []string) (*doc.Document, error) {
	return mutate(ctx, a, append([]string{id}, reviewers...), func() (*doc.Document, error) {
		return a.service.SubmitReview(ctx, id, a.Actor(), reviewers...)
	})
}

// Approve records the current actor's approval.
func (a *DocLifeApp) Approve(ctx context.Context, id, comment string) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Approve(ctx, id, a.Actor(), comment)
	})
}

// Reject records the current actor's rejection.
func (a *DocLifeApp) Reject(ctx context.Context, id, reason string) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Reject(ctx, id, a.Actor(), reason)
	})
}

// Publish copies an approved document to the mirror.
func (a *DocLifeApp) Publish(ctx context.Context, id string, force bool) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Publish(ctx, id, a.Actor(), force)
	})
}

// Unpublish withdraws a published document.
func (a *DocLifeApp) Unpublish(ctx context.Context, id, reason string) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Unpublish(ctx, id, a.Actor(), reason)
	})
}

// Archive retires a document.
func (a *DocLifeApp) Archive(ctx context.Context, id, reason string) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Archive(ctx, id, a.Actor(), reason)
	})
}

// Unarchive restores an archived document.
func (a *DocLifeApp) Unarchive(ctx context.Context, id string) (*doc.Document, error) {
	return mutate(ctx, a, []string{id}, func() (*doc.Document, error) {
		return a.service.Unarchive(ctx, id, a.Actor())
	})
}

// SetVisibility changes a document's audience.
func (a *DocLifeApp) SetVisibility(ctx context.Context, id string, visibility doc.Visibility, force bool) (*doc.Document, error) {
	return mutate(ctx, a, []string{id, string(visibility)}, func() (*doc.Document, error) {
		return a.service.SetVisibility(ctx, id, a.Actor(), visibility, force)
	})
}

// RegisterEntity records an owning entity.
func (a *DocLifeApp) RegisterEntity(ctx context.Context, entityType, entityID, title string) error {
	_, err := mutate(ctx, a, []string{entityType, entityID}, func() (struct{}, error) {
		return struct{}{}, a.db.RegisterEntity(ctx, entityType, entityID, title)
	})
	return err
}

// SetPhase stores a work item's new phase and delivers the phase change to
// the document service. It returns the documents that were published.
func (a *DocLifeApp) SetPhase(ctx context.Context, workItemID string, phase doc.Phase) ([]*doc.Document, error) {
	return mutate(ctx, a, []string{workItemID, string(phase)}, func() ([]*doc.Document, error) {
		if err := a.db.SetWorkItemPhase(ctx, workItemID, phase); err != nil {
			return nil, err
		}
		return a.service.OnPhaseChange(ctx, doc.PhaseChange{WorkItemID: workItemID, NewPhase: phase})
	})
}

// Sync reconciles published records with the mirror. Dry runs are not
// persisted as operations.
func (a *DocLifeApp) Sync(ctx context.Context, req doc.SyncRequest) (*doc.SyncReport, error) {
	if req.Actor == "" {
		req.Actor = a.Actor()
	}
	if req.DryRun {
		return a.service.Sync(ctx, req)
	}
	return mutate(ctx, a, []string{string(req.Category), string(req.DocumentType)}, func() (*doc.SyncReport, error) {
		report, err := a.service.Sync(ctx, req)
		if err == nil && report.Failed > 0 {
			a.op.Fail()
		}
		return report, err
	})
}

// MigratePaths moves non-canonical working copies. Dry runs are not
// persisted as operations.
func (a *DocLifeApp) MigratePaths(ctx context.Context, dryRun bool) (*doc.MigrationReport, error) {
	req := doc.MigrateRequest{DryRun: dryRun, Actor: a.Actor()}
	if dryRun {
		return a.service.MigratePaths(ctx, req)
	}
	return mutate(ctx, a, nil, func() (*doc.MigrationReport, error) {
		report, err := a.service.MigratePaths(ctx, req)
		if err == nil && report.Failed > 0 {
			a.op.Fail()
		}
		return report, err
	})
}

// ExpireReviews applies the configured review expiry action.
func (a *DocLifeApp) ExpireReviews(ctx context.Context) ([]doc.ExpiredReview, error) {
	return mutate(ctx, a, []string{a.cfg.Review.ExpiryAction}, func() ([]doc.ExpiredReview, error) {
		return a.service.ExpireReviews(ctx)
	})
}

// GetDocument returns one record.
func (a *DocLifeApp) GetDocument(ctx context.Context, id string) (*doc.Document, error) {
	return a.service.GetDocument(ctx, id)
}

// ListDocuments returns records matching filter.
func (a *DocLifeApp) ListDocuments(ctx context.Context, filter doc.DocumentFilter) ([]*doc.Document, error) {
	return a.service.ListDocuments(ctx, filter)
}

// ListAudit returns the history of one document.
func (a *DocLifeApp) ListAudit(ctx context.Context, id string) ([]*doc.AuditEntry, error) {
	return a.service.ListAudit(ctx, id)
}

// ListEntities returns every registered owning entity.
func (a *DocLifeApp) ListEntities(ctx context.Context) ([]*database.Entity, error) {
	return a.db.ListEntities(ctx)
}

// GetHistory returns the most recent operations.
func (a *DocLifeApp) GetHistory(ctx context.Context, limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

// Status summarises the project: documents per stage and the metadata version.
type Status struct {
	ProjectID       string
	Stages          map[doc.Stage]int
	Total           int
	MetadataVersion int64 // highest persisted operation ID
}

// GetStatus counts documents per stage.
func (a *DocLifeApp) GetStatus(ctx context.Context) (*Status, error) {
	docs, err := a.service.ListDocuments(ctx, doc.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	version, err := a.db.MaxOperationID(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{ProjectID: a.cfg.ProjectID, Stages: make(map[doc.Stage]int), Total: len(docs), MetadataVersion: version}
	for _, d := range docs {
		st.Stages[d.Stage]++
	}
	return st, nil
}

// CheckMirror verifies the public mirror is reachable and writable.
func (a *DocLifeApp) CheckMirror() error {
	return a.mirror.ValidateSetup()
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record and snapshots the
// database into the backup store, versioned by operation ID.
// For non-persisted operations: just closes the database.
func (a *DocLifeApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(context.Background(), a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}
		keep(a.snapshotMetadata())
	}

	if err := a.db.Close(); err != nil {
		keep(fmt.Errorf("closing database: %w", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// snapshotMetadata copies the database into the backup store. In-memory
// databases have nothing to keep.
func (a *DocLifeApp) snapshotMetadata() error {
	if a.db.Path() == ":memory:" {
		return nil
	}
	tmpDir, err := os.MkdirTemp("", "doclife-db-backup-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, "snapshot.db")
	if err := a.db.BackupTo(tmpPath); err != nil {
		return err
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening db backup: %w", err)
	}
	defer f.Close()

	if err := a.backups.Snapshot(metadataOperation, MetadataSnapshotName(a.cfg.ProjectID, a.op.ID), f); err != nil {
		return fmt.Errorf("storing db backup: %w", err)
	}
	return nil
}

// RestoreMetadata writes the database snapshot taken after operation version
// to destPath, which must not exist. Encrypted backups must be unlocked first.
// The live database is never touched; the operator swaps the file in.
func (a *DocLifeApp) RestoreMetadata(version int64, destPath string) error {
	name := MetadataSnapshotName(a.cfg.ProjectID, version)
	a.logger.Info("metadata restore started", "version", version, "dest", destPath)

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creating restore target: %w", err)
	}
	if err := a.backups.Restore(metadataOperation, name, f); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("closing restore target: %w", err)
	}
	a.logger.Info("metadata restored", "version", version, "dest", destPath)
	return nil
}

// MetadataSnapshotName is the backup path of the database snapshot taken
// after operation version.
func MetadataSnapshotName(projectID string, version int64) string {
	return fmt.Sprintf("%s/%08d.db", projectID, version)
}
