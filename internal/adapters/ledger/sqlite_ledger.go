package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// SQLiteLedger is a SQLite implementation of the LedgerRepository interface.
// Timestamps are stored as UTC RFC3339 strings.
type SQLiteLedger struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteLedger opens or creates the ledger database at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS forward_ledger (
			item_key TEXT PRIMARY KEY,
			origin TEXT NOT NULL,
			forwarded_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ledger_expires_at ON forward_ledger(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteLedger{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Get retrieves the entry for a key
func (l *SQLiteLedger) Get(ctx context.Context, key string) (*core.LedgerEntry, error) {
	var entry core.LedgerEntry
	var forwardedAt, expiresAt string

	err := l.db.QueryRowContext(ctx, `
		SELECT item_key, origin, forwarded_at, expires_at
		FROM forward_ledger
		WHERE item_key = ? AND expires_at > ?
	`, key, sqliteTime(l.now())).Scan(&entry.Key, &entry.Origin, &forwardedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	if entry.ForwardedAt, err = time.Parse(time.RFC3339, forwardedAt); err != nil {
		return nil, fmt.Errorf("failed to parse forwarded_at: %w", err)
	}
	if entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	return &entry, nil
}

// Set stores an entry
func (l *SQLiteLedger) Set(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO forward_ledger (item_key, origin, forwarded_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, entry.Key, entry.Origin, sqliteTime(entry.ForwardedAt), sqliteTime(entry.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Delete removes an entry
func (l *SQLiteLedger) Delete(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM forward_ledger
		WHERE item_key = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *SQLiteLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM forward_ledger
		WHERE expires_at <= ?
	`, sqliteTime(l.now()))
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired ledger entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop closes the database connection
func (l *SQLiteLedger) Stop() {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
