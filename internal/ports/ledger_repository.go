package ports

import (
	"context"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// LedgerRepository records forwarded items so later runs can skip them
type LedgerRepository interface {
	// Get retrieves the entry for a key
	Get(ctx context.Context, key string) (*core.LedgerEntry, error)

	// Set stores an entry
	Set(ctx context.Context, entry *core.LedgerEntry) error

	// Delete removes an entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
