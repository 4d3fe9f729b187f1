package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)
	if db == nil {
		t.Fatal("Expected database instance, got nil")
	}
}

func TestInitialize(t *testing.T) {
	db := newTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	for _, table := range []string{"sessions", "messages", "feedback"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("First initialize failed: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestInitialize_Indexes(t *testing.T) {
	db := newTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	for _, idx := range []string{"idx_messages_session", "idx_feedback_session"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("Expected index %s to exist: %v", idx, err)
		}
	}
}

func TestMessages_CascadeDelete(t *testing.T) {
	db := newTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	now := time.Now().UTC()
	if _, err := db.Exec(
		`INSERT INTO sessions (session_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"s1", "test", now, now,
	); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO messages (session_id, role, content, intent, entities, source_urls, tool_trace, timestamp)
		VALUES ('s1', 'user', 'hello', 'general', '{}', '[]', '[]', ?)`, now,
	); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM sessions WHERE session_id = 's1'`); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = 's1'`).Scan(&count); err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected cascade delete to remove messages, found %d", count)
	}
}

func TestFeedback_RatingConstraint(t *testing.T) {
	db := newTestDB(t)
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO feedback (session_id, message_content, rating, created_at)
		VALUES ('s1', 'bad answer', 'five_stars', ?)`, time.Now().UTC())
	if err == nil {
		t.Error("Expected CHECK constraint to reject unknown rating")
	}
}
