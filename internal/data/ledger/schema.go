package ledger

import (
	"database/sql"
	"fmt"
)

func migrateLedgerSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("ledger db is nil")
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS processed_packages (
  root_sha256 TEXT PRIMARY KEY,
  admitted_at INTEGER NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}
