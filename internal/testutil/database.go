package testutil

import (
	"context"
	"testing"

	"doclife/internal/database"
	"doclife/internal/doc"
)

// NewTestDatabase creates an in-memory SQLite database with all migrations
// applied. It is closed when the test completes.
func NewTestDatabase(t *testing.T, clock doc.Clock) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// InsertLegacyDocument writes d straight into the documents table, skipping
// the constraint gate. It models records created before the canonical
// layout was enforced.
func InsertLegacyDocument(t *testing.T, db *database.SQLiteDatabase, d *doc.Document) {
	t.Helper()

	_, err := db.DB().ExecContext(context.Background(), `INSERT INTO documents (
			id, entity_type, entity_id, category, document_type, file_path, title, description,
			content_hash, visibility, stage, archived_from, published_path, auto_publish,
			auto_publish_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.EntityType, d.EntityID, d.Category, d.DocumentType, d.FilePath, d.Title, d.Description,
		d.ContentHash, d.Visibility, d.Stage, d.ArchivedFrom, d.PublishedPath, d.AutoPublish,
		d.AutoPublishRule, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		t.Fatalf("inserting legacy document %s: %v", d.ID, err)
	}
}
