package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/ports"
)

var (
	_ ports.LedgerRepository = (*MemoryLedger)(nil)
	_ ports.LedgerRepository = (*SQLiteLedger)(nil)
	_ ports.LedgerRepository = (*MySQLLedger)(nil)
)

var ledgerNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(key string, ttl time.Duration) *core.LedgerEntry {
	return &core.LedgerEntry{
		Key:         key,
		Origin:      "chat",
		ForwardedAt: ledgerNow.Add(-time.Minute),
		ExpiresAt:   ledgerNow.Add(ttl),
	}
}

func exerciseLedger(t *testing.T, l ports.LedgerRepository) {
	ctx := context.Background()

	_, err := l.Get(ctx, "chat:a:1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.Set(ctx, entry("chat:a:1", time.Hour)))
	require.NoError(t, l.Set(ctx, entry("chat:a:2", -time.Hour)))

	got, err := l.Get(ctx, "chat:a:1")
	require.NoError(t, err)
	assert.Equal(t, "chat", got.Origin)
	assert.True(t, got.ExpiresAt.Equal(ledgerNow.Add(time.Hour)))

	_, err = l.Get(ctx, "chat:a:2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.Cleanup(ctx))
	require.NoError(t, l.Delete(ctx, "chat:a:1"))
	_, err = l.Get(ctx, "chat:a:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger(zaptest.NewLogger(t))
	l.now = func() time.Time { return ledgerNow }
	exerciseLedger(t, l)
	assert.Empty(t, l.entries)
}

func TestSQLiteLedger(t *testing.T) {
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer l.Stop()
	l.now = func() time.Time { return ledgerNow }

	exerciseLedger(t, l)

	var count int
	require.NoError(t, l.db.QueryRow(`SELECT COUNT(*) FROM forward_ledger`).Scan(&count))
	assert.Zero(t, count)
}

func TestMySQLLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS forward_ledger").
		WillReturnResult(sqlmock.NewResult(0, 0))

	l, err := NewMySQLLedgerFromDB(db, zaptest.NewLogger(t))
	require.NoError(t, err)
	l.now = func() time.Time { return ledgerNow }
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO forward_ledger").
		WithArgs("mail:abc", "chat", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, l.Set(ctx, entry("mail:abc", time.Hour)))

	rows := sqlmock.NewRows([]string{"item_key", "origin", "forwarded_at", "expires_at"}).
		AddRow("mail:abc", "mail", ledgerNow, ledgerNow.Add(time.Hour))
	mock.ExpectQuery("SELECT item_key, origin, forwarded_at, expires_at FROM forward_ledger").
		WithArgs("mail:abc", ledgerNow).
		WillReturnRows(rows)
	got, err := l.Get(ctx, "mail:abc")
	require.NoError(t, err)
	assert.Equal(t, "mail", got.Origin)
	assert.True(t, got.ForwardedAt.Equal(ledgerNow))

	mock.ExpectQuery("SELECT item_key").
		WithArgs("mail:missing", ledgerNow).
		WillReturnRows(sqlmock.NewRows([]string{"item_key", "origin", "forwarded_at", "expires_at"}))
	_, err = l.Get(ctx, "mail:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("DELETE FROM forward_ledger WHERE expires_at").
		WithArgs(ledgerNow).
		WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, l.Cleanup(ctx))

	mock.ExpectExec("DELETE FROM forward_ledger WHERE item_key").
		WithArgs("mail:abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, l.Delete(ctx, "mail:abc"))

	mock.ExpectClose()
	l.Stop()
	assert.NoError(t, mock.ExpectationsWereMet())
}
