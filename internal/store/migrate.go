package store

import (
	"database/sql"
	"fmt"
	"strings"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS saved_sessions (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		file_name    TEXT NOT NULL DEFAULT '',
		entry_count  INTEGER NOT NULL DEFAULT 0,
		period_start TEXT NOT NULL DEFAULT '',
		period_end   TEXT NOT NULL DEFAULT '',
		document     TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_sessions_updated_at ON saved_sessions(updated_at)`,
	`ALTER TABLE saved_sessions ADD COLUMN module_count INTEGER NOT NULL DEFAULT 0`,
}

// Migrate runs all schema migrations. Statements are idempotent, so the
// whole list runs on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ... ADD COLUMN is not idempotent in SQLite.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
