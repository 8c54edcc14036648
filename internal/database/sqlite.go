package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"doclife/internal/database/migrations"
	"doclife/internal/doc"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements doc.Store and doc.WorkItems on SQLite. It also
// records CLI operations.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock doc.Clock
}

// NewSQLiteDatabase opens a database at path, which may be ":memory:".
// The schema is not migrated; call Migrate or CheckMigrations.
func NewSQLiteDatabase(path string, clock doc.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = doc.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection.
//
// The pool holds a single connection: SQLite allows one writer at a time, and
// an in-memory database exists only inside the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

// Document operations

const documentColumns = `id, entity_type, entity_id, category, document_type, file_path, title, description,
	content_hash, visibility, stage, archived_from, review_started_at, published_path, published_at,
	unpublished_at, auto_publish, auto_publish_rule, created_at, updated_at`

// CreateDocument inserts d with its reviewers and entries in one transaction.
func (s *SQLiteDatabase) CreateDocument(ctx context.Context, d *doc.Document, entries ...*doc.AuditEntry) error {
	if err := doc.Validate(d); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.EntityType, d.EntityID, d.Category, d.DocumentType, d.FilePath, d.Title, d.Description,
			d.ContentHash, d.Visibility, d.Stage, d.ArchivedFrom, nullTime(d.ReviewStartedAt), d.PublishedPath,
			nullTime(d.PublishedAt), nullTime(d.UnpublishedAt), d.AutoPublish, d.AutoPublishRule,
			d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		if err := replaceReviewers(ctx, tx, d); err != nil {
			return err
		}
		return insertAudit(ctx, tx, entries)
	})
}

// UpdateDocument replaces the stored record and appends entries in one
// transaction. The audit entries land if and only if the record does.
func (s *SQLiteDatabase) UpdateDocument(ctx context.Context, d *doc.Document, entries ...*doc.AuditEntry) error {
	if err := doc.Validate(d); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE documents SET
			entity_type = ?, entity_id = ?, category = ?, document_type = ?, file_path = ?, title = ?,
			description = ?, content_hash = ?, visibility = ?, stage = ?, archived_from = ?,
			review_started_at = ?, published_path = ?, published_at = ?, unpublished_at = ?,
			auto_publish = ?, auto_publish_rule = ?, updated_at = ?
			WHERE id = ?`,
			d.EntityType, d.EntityID, d.Category, d.DocumentType, d.FilePath, d.Title,
			d.Description, d.ContentHash, d.Visibility, d.Stage, d.ArchivedFrom,
			nullTime(d.ReviewStartedAt), d.PublishedPath, nullTime(d.PublishedAt), nullTime(d.UnpublishedAt),
			d.AutoPublish, d.AutoPublishRule, d.UpdatedAt, d.ID)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", d.ID, doc.ErrNotFound)
		}
		if err := replaceReviewers(ctx, tx, d); err != nil {
			return err
		}
		return insertAudit(ctx, tx, entries)
	})
}

// AppendAudit appends entries without touching any record.
func (s *SQLiteDatabase) AppendAudit(ctx context.Context, entries ...*doc.AuditEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertAudit(ctx, tx, entries)
	})
}

func (s *SQLiteDatabase) GetDocument(ctx context.Context, id string) (*doc.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, doc.ErrNotFound
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if err := s.loadReviewers(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteDatabase) FindDocumentByPath(ctx context.Context, filePath string) (*doc.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_path = ?`, filePath)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document by path: %w", err)
	}
	if err := s.loadReviewers(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteDatabase) ListDocuments(ctx context.Context, filter doc.DocumentFilter) ([]*doc.Document, error) {
	var where []string
	var args []any
	add := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	add("stage", string(filter.Stage))
	add("category", string(filter.Category))
	add("document_type", string(filter.DocumentType))
	add("entity_type", filter.EntityType)
	add("entity_id", filter.EntityID)

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY file_path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	var docs []*doc.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	// Reviewers are loaded after the cursor is closed; the pool has one connection.
	for _, d := range docs {
		if err := s.loadReviewers(ctx, d); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// ListAudit returns a document's entries in insertion order.
func (s *SQLiteDatabase) ListAudit(ctx context.Context, documentID string) ([]*doc.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document_id, action, actor, timestamp, from_state, to_state,
		details, comment FROM audit_log WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var entries []*doc.AuditEntry
	for rows.Next() {
		var e doc.AuditEntry
		var details string
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Action, &e.Actor, &e.Timestamp, &e.FromState, &e.ToState,
			&details, &e.Comment); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details for %s: %w", e.ID, err)
			}
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return entries, nil
}

func (s *SQLiteDatabase) loadReviewers(ctx context.Context, d *doc.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT reviewer_id, decision, decided_at FROM reviewer_assignments
		WHERE document_id = ? ORDER BY position`, d.ID)
	if err != nil {
		return fmt.Errorf("loading reviewers: %w", err)
	}
	defer rows.Close()

	d.Reviewers = nil
	for rows.Next() {
		var a doc.ReviewerAssignment
		var decidedAt sql.NullTime
		if err := rows.Scan(&a.ReviewerID, &a.Decision, &decidedAt); err != nil {
			return fmt.Errorf("scanning reviewer: %w", err)
		}
		a.DecidedAt = fromNullTime(decidedAt)
		d.Reviewers = append(d.Reviewers, a)
	}
	return rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*doc.Document, error) {
	var d doc.Document
	var reviewStarted, publishedAt, unpublishedAt sql.NullTime
	err := row.Scan(&d.ID, &d.EntityType, &d.EntityID, &d.Category, &d.DocumentType, &d.FilePath, &d.Title,
		&d.Description, &d.ContentHash, &d.Visibility, &d.Stage, &d.ArchivedFrom, &reviewStarted,
		&d.PublishedPath, &publishedAt, &unpublishedAt, &d.AutoPublish, &d.AutoPublishRule,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ReviewStartedAt = fromNullTime(reviewStarted)
	d.PublishedAt = fromNullTime(publishedAt)
	d.UnpublishedAt = fromNullTime(unpublishedAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func replaceReviewers(ctx context.Context, tx *sql.Tx, d *doc.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviewer_assignments WHERE document_id = ?`, d.ID); err != nil {
		return fmt.Errorf("clearing reviewers: %w", err)
	}
	for i, a := range d.Reviewers {
		decision := a.Decision
		if decision == "" {
			decision = doc.DecisionPending
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO reviewer_assignments (document_id, reviewer_id, position, decision, decided_at)
			VALUES (?, ?, ?, ?, ?)`, d.ID, a.ReviewerID, i, decision, nullTime(a.DecidedAt))
		if err != nil {
			return fmt.Errorf("inserting reviewer %s: %w", a.ReviewerID, err)
		}
	}
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, entries []*doc.AuditEntry) error {
	for _, e := range entries {
		details := "{}"
		if len(e.Details) > 0 {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("encoding audit details: %w", err)
			}
			details = string(b)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO audit_log (id, document_id, action, actor, timestamp, from_state,
			to_state, details, comment) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.DocumentID, e.Action, e.Actor, e.Timestamp, e.FromState, e.ToState, details, e.Comment)
		if err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *SQLiteDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// DB exposes the underlying connection for tests and tooling.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ doc.Store     = (*SQLiteDatabase)(nil)
	_ doc.WorkItems = (*SQLiteDatabase)(nil)
)
