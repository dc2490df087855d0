// Package route orders and partitions envelopes and fans mails out to recipients.
package route

import (
	"slices"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// Router splits envelopes by their group of origin
type Router struct {
	homeGroup string
	logger    *zap.Logger
}

// NewRouter creates a new Router for the given home group
func NewRouter(homeGroup string, logger *zap.Logger) *Router {
	return &Router{
		homeGroup: homeGroup,
		logger:    logger,
	}
}

// Flatten concatenates the per-account lists, accounts in sorted key order
func (r *Router) Flatten(batch core.Batch) []core.Envelope {
	accounts := make([]string, 0, len(batch))
	total := 0
	for account, envs := range batch {
		accounts = append(accounts, account)
		total += len(envs)
	}
	slices.Sort(accounts)

	flat := make([]core.Envelope, 0, total)
	for _, account := range accounts {
		flat = append(flat, batch[account]...)
	}
	return flat
}

// Route partitions the flattened batch. Envelopes from the home group are
// forwarded, everything else lands in filtered.
func (r *Router) Route(batch core.Batch) (forward, filtered []core.Envelope) {
	for _, env := range r.Flatten(batch) {
		if env.GroupID != "" && env.GroupID == r.homeGroup {
			forward = append(forward, env)
			continue
		}
		r.logger.Debug("Envelope filtered",
			zap.String("key", env.Key()),
			zap.String("group_id", env.GroupID))
		filtered = append(filtered, env)
	}

	r.logger.Info("Envelopes routed",
		zap.Int("forward", len(forward)),
		zap.Int("filtered", len(filtered)))

	return forward, filtered
}

// FanOut produces one copy of every mail per recipient, message-major
func FanOut(mails []core.OutboundMail, recipients []string) []core.OutboundMail {
	units := make([]core.OutboundMail, 0, len(mails)*len(recipients))
	for _, m := range mails {
		for _, rcpt := range recipients {
			unit := m
			unit.To = rcpt
			units = append(units, unit)
		}
	}
	return units
}
