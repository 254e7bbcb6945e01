package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"feedsync/internal/db"
)

// NewTestDB opens a migrated database in a temp dir, closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}
