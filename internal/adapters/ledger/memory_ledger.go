// Package ledger stores the keys of already forwarded items so repeated
// runs do not forward them twice.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// ErrNotFound is returned when no live entry exists for a key
var ErrNotFound = errors.New("ledger entry not found")

// MemoryLedger is an in-memory implementation of the LedgerRepository
// interface. Entries live only as long as the process.
type MemoryLedger struct {
	entries map[string]core.LedgerEntry
	mu      sync.RWMutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]core.LedgerEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Get retrieves the entry for a key
func (l *MemoryLedger) Get(_ context.Context, key string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[key]
	if !ok || !l.now().Before(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Set stores an entry
func (l *MemoryLedger) Set(_ context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[entry.Key] = *entry
	return nil
}

// Delete removes an entry
func (l *MemoryLedger) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, key)
	return nil
}

// Cleanup removes expired entries
func (l *MemoryLedger) Cleanup(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	expired := 0
	for key, entry := range l.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(l.entries, key)
			expired++
		}
	}

	l.logger.Debug("Cleaned up expired ledger entries", zap.Int("expired_count", expired))
	return nil
}

// Stop is a no-op for the memory ledger
func (l *MemoryLedger) Stop() {}
