package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/signal-mail-bridge/internal/adapters/ledger"
	"github.com/mikey/signal-mail-bridge/internal/config"
	"github.com/mikey/signal-mail-bridge/internal/ports"
	"go.uber.org/zap"
)

// LedgerFactory creates forwarding ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates a ledger based on the configuration. A disabled
// ledger yields nil, in which case every item is forwarded.
func (f *LedgerFactory) CreateLedger() (ports.LedgerRepository, error) {
	lc, err := f.cfg.GetLedger()
	if err != nil {
		return nil, err
	}
	if !lc.Enabled {
		f.logger.Info("Forwarding ledger disabled")
		return nil, nil
	}

	switch lc.Type {
	case "memory":
		return ledger.NewMemoryLedger(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(lc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return ledger.NewSQLiteLedger(lc.SQLitePath, f.logger)
	case "mysql":
		return ledger.NewMySQLLedger(lc.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", lc.Type)
	}
}

// GetLedgerTTL returns how long forwarded items are remembered
func (f *LedgerFactory) GetLedgerTTL() (time.Duration, error) {
	lc, err := f.cfg.GetLedger()
	if err != nil {
		return 0, err
	}
	return lc.TTL, nil
}
