package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"entities", "documents", "reviewer_assignments", "audit_log", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNoVersion) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNoVersion", err)
		}
	})

	t.Run("ok after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}

		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("first MigrateUp() failed: %v", err)
		}
		if err := MigrateUp(db); err != nil {
			t.Errorf("second MigrateUp() failed: %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})
}

func TestLatestVersion(t *testing.T) {
	got, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if got != 2 {
		t.Errorf("LatestVersion() = %d, want 2", got)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := MigrateDown(db); err != nil {
		t.Fatalf("MigrateDown() failed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&n); err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("documents table still exists after MigrateDown()")
	}
}

func TestSchema_DocumentConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, `INSERT INTO entities (entity_type, entity_id, created_at, updated_at)
		VALUES ('work_item', 'W-1', datetime('now'), datetime('now'))`)

	insert := `INSERT INTO documents (id, entity_type, entity_id, category, document_type, file_path, title,
		visibility, stage, archived_from, published_path, created_at, updated_at)
		VALUES (?, 'work_item', ?, 'guides', 'user_guide', ?, 'Guide', 'public', ?, ?, ?, datetime('now'), datetime('now'))`

	tests := []struct {
		name          string
		entityID      string
		path          string
		stage         string
		archivedFrom  string
		publishedPath string
		wantErr       bool
	}{
		{name: "valid draft", entityID: "W-1", path: "guides/user_guide/a.md", stage: "draft"},
		{name: "valid published", entityID: "W-1", path: "guides/user_guide/b.md", stage: "published", publishedPath: "guides/user_guide/b.md"},
		{name: "rejected is never stored", entityID: "W-1", path: "guides/user_guide/c.md", stage: "rejected", wantErr: true},
		{name: "published without path", entityID: "W-1", path: "guides/user_guide/d.md", stage: "published", wantErr: true},
		{name: "path without published", entityID: "W-1", path: "guides/user_guide/e.md", stage: "approved", publishedPath: "guides/user_guide/e.md", wantErr: true},
		{name: "archived without origin", entityID: "W-1", path: "guides/user_guide/f.md", stage: "archived", wantErr: true},
		{name: "absolute path", entityID: "W-1", path: "/guides/user_guide/g.md", stage: "draft", wantErr: true},
		{name: "unknown entity", entityID: "W-404", path: "guides/user_guide/h.md", stage: "draft", wantErr: true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(insert, "doc-"+string(rune('a'+i)), tt.entityID, tt.path, tt.stage, tt.archivedFrom, tt.publishedPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("insert error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_AuditLogAppendOnly(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, `INSERT INTO entities (entity_type, entity_id, created_at, updated_at)
		VALUES ('project', 'P', datetime('now'), datetime('now'))`)
	mustExec(t, db, `INSERT INTO documents (id, entity_type, entity_id, category, document_type, file_path, title,
		visibility, stage, created_at, updated_at)
		VALUES ('d1', 'project', 'P', 'notes', 'internal_note', 'notes/internal_note/x.md', 'X', 'private', 'draft',
		datetime('now'), datetime('now'))`)
	mustExec(t, db, `INSERT INTO audit_log (id, document_id, action, actor, timestamp)
		VALUES ('a1', 'd1', 'create', 'alice', datetime('now'))`)

	if _, err := db.Exec("UPDATE audit_log SET actor = 'mallory'"); err == nil {
		t.Error("UPDATE on audit_log succeeded, want error")
	}
	if _, err := db.Exec("DELETE FROM audit_log"); err == nil {
		t.Error("DELETE on audit_log succeeded, want error")
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// openTestDB opens an in-memory SQLite database with foreign keys on. The
// pool is limited to one connection so every query sees the same database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	return db
}
