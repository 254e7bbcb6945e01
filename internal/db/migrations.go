package db

import (
	"database/sql"
	"fmt"
)

// Base schema - uses Snowflake IDs (no AUTOINCREMENT)
const baseSchema = `
CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY,
  guid TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  source TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  published_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func runMigrations(db *sql.DB) error {
	// Migration 1: Add tags column (JSON array) to records
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('records') WHERE name = 'tags'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check tags column: %w", err)
	}

	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE records ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return fmt.Errorf("add tags column: %w", err)
		}
	}

	// Migration 2: Index records by source for per-feed inspection
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`); err != nil {
		return fmt.Errorf("create idx_records_source: %w", err)
	}

	return nil
}
