package factory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/adapters/ledger"
	"github.com/mikey/signal-mail-bridge/internal/config"
)

func TestCreateLedger(t *testing.T) {
	logger := zaptest.NewLogger(t)

	v := config.NewEmptyViper()
	v.Set("ledger.type", "memory")
	repo, err := NewLedgerFactory(config.NewFromViper(v), logger).CreateLedger()
	require.NoError(t, err)
	assert.IsType(t, &ledger.MemoryLedger{}, repo)

	v = config.NewEmptyViper()
	v.Set("ledger.type", "sqlite")
	v.Set("ledger.sqlite_path", filepath.Join(t.TempDir(), "nested", "ledger.db"))
	repo, err = NewLedgerFactory(config.NewFromViper(v), logger).CreateLedger()
	require.NoError(t, err)
	require.IsType(t, &ledger.SQLiteLedger{}, repo)
	repo.(*ledger.SQLiteLedger).Stop()

	v = config.NewEmptyViper()
	v.Set("ledger.enabled", false)
	repo, err = NewLedgerFactory(config.NewFromViper(v), logger).CreateLedger()
	require.NoError(t, err)
	assert.Nil(t, repo)

	v = config.NewEmptyViper()
	v.Set("ledger.type", "redis")
	_, err = NewLedgerFactory(config.NewFromViper(v), logger).CreateLedger()
	assert.EqualError(t, err, "unsupported ledger type: redis")
}

func TestGetLedgerTTL(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("ledger.ttl", "48h")
	ttl, err := NewLedgerFactory(config.NewFromViper(v), zaptest.NewLogger(t)).GetLedgerTTL()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, ttl)
}

func TestMailPasswordFromKeyring(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "bridge@example.org", Data: []byte("from-ring")},
	})

	v := config.NewEmptyViper()
	v.Set("mail.user", "bridge@example.org")
	v.Set("mail.password", "from-config")
	v.Set("mail.password_keyring", true)
	v.Set("mail.smtp.host", "smtp.example.org")

	f := NewTransportFactory(config.NewFromViper(v), zaptest.NewLogger(t))
	f.openKeyring = func() (keyring.Keyring, error) { return ring, nil }

	password, err := f.mailPassword(f.cfg.GetMail())
	require.NoError(t, err)
	assert.Equal(t, "from-ring", password)

	sender, err := f.CreateMailSender()
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestCreateTransportsValidate(t *testing.T) {
	f := NewTransportFactory(config.NewFromViper(config.NewEmptyViper()), zaptest.NewLogger(t))

	_, err := f.CreateMailFetcher()
	assert.EqualError(t, err, "imap host is empty")

	_, err = f.CreateChatClient()
	assert.EqualError(t, err, "signal account number is empty")

	assert.Nil(t, f.CreateMailArchive())
}
