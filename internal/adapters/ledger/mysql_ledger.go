package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// MySQLLedger is a MySQL implementation of the LedgerRepository interface
type MySQLLedger struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewMySQLLedger connects to dsn and creates the ledger table if needed.
// parseTime is forced on so DATETIME columns scan into time.Time.
func NewMySQLLedger(dsn string, logger *zap.Logger) (*MySQLLedger, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	ledger, err := NewMySQLLedgerFromDB(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

// NewMySQLLedgerFromDB wraps an open connection and creates the ledger table if needed
func NewMySQLLedgerFromDB(db *sql.DB, logger *zap.Logger) (*MySQLLedger, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS forward_ledger (
			item_key VARCHAR(255) PRIMARY KEY,
			origin VARCHAR(16) NOT NULL,
			forwarded_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			INDEX idx_ledger_expires_at (expires_at)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLedger{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Get retrieves the entry for a key
func (l *MySQLLedger) Get(ctx context.Context, key string) (*core.LedgerEntry, error) {
	var entry core.LedgerEntry

	err := l.db.QueryRowContext(ctx, `
		SELECT item_key, origin, forwarded_at, expires_at
		FROM forward_ledger
		WHERE item_key = ? AND expires_at > ?
	`, key, l.now().UTC()).Scan(&entry.Key, &entry.Origin, &entry.ForwardedAt, &entry.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	return &entry, nil
}

// Set stores an entry
func (l *MySQLLedger) Set(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO forward_ledger (item_key, origin, forwarded_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			origin = VALUES(origin),
			forwarded_at = VALUES(forwarded_at),
			expires_at = VALUES(expires_at)
	`, entry.Key, entry.Origin, entry.ForwardedAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Delete removes an entry
func (l *MySQLLedger) Delete(ctx context.Context, key string) error {
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
func (l *MySQLLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM forward_ledger
		WHERE expires_at <= ?
	`, l.now().UTC())
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
func (l *MySQLLedger) Stop() {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
