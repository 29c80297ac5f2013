package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yarasynth/internal/core/ports"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

var _ ports.DedupLedger = (*SQLiteLedger)(nil)

// SQLiteLedger persists admitted hashes so later runs skip packages already synthesized.
type SQLiteLedger struct {
	db *sql.DB
}

func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("ledger path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("ledger path %q is a directory", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger sqlite %q: %w", cleanPath, err)
	}
	// One connection serializes every statement, which makes each INSERT OR IGNORE the
	// critical section.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger sqlite %q: %w", cleanPath, err)
	}
	if err := migrateLedgerSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Admit(ctx context.Context, hash string) (bool, error) {
	if l == nil || l.db == nil {
		return false, fmt.Errorf("ledger not initialized")
	}
	key, err := normalizeHash(hash)
	if err != nil {
		return false, err
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_packages (root_sha256, admitted_at) VALUES (?, ?)`,
		key, time.Now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("admit %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admit %s rows affected: %w", key, err)
	}
	return n == 1, nil
}

func (l *SQLiteLedger) Release(ctx context.Context, hash string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("ledger not initialized")
	}
	key, err := normalizeHash(hash)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM processed_packages WHERE root_sha256 = ?`, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Count returns the number of admitted hashes.
func (l *SQLiteLedger) Count(ctx context.Context) (int, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("ledger not initialized")
	}
	var count int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_packages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ledger rows: %w", err)
	}
	return count, nil
}

func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Open returns a SQLite ledger for a non-empty path and an in-memory ledger otherwise.
func Open(path string) (ports.DedupLedger, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemoryLedger(), nil
	}
	l, err := OpenSQLiteLedger(path)
	if err != nil {
		return nil, err
	}
	if n, err := l.Count(context.Background()); err == nil {
		slog.Info("dedup ledger opened", "path", path, "packages", n)
	}
	return l, nil
}
