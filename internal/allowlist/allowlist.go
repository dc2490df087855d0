// Package allowlist decides which mail senders may post into the chat group.
package allowlist

import (
	"slices"
	"strings"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Checker matches mail senders against configured addresses and domains
type Checker struct {
	addresses map[string]bool
	domains   map[string]bool
	logger    *zap.Logger
}

// NewChecker creates a new allowlist checker. Entries containing a local part
// match exact addresses, "@example.org" and "example.org" match whole domains.
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]bool),
		domains:   make(map[string]bool),
		logger:    logger,
	}

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "@"):
			c.domains[entry[1:]] = true
		case strings.Contains(entry, "@"):
			c.addresses[entry] = true
		default:
			c.domains[entry] = true
		}
	}

	if len(entries) > 0 && logger != nil {
		logger.Info("Initialized sender allowlist",
			zap.Int("addresses", len(c.addresses)),
			zap.Int("domains", len(c.domains)))
	}

	return c
}

// SearchTerms returns the exact addresses and "@domain" fragments used to
// narrow mailbox searches, sorted
func (c *Checker) SearchTerms() []string {
	terms := make([]string, 0, len(c.addresses)+len(c.domains))
	for a := range c.addresses {
		terms = append(terms, a)
	}
	for d := range c.domains {
		terms = append(terms, "@"+d)
	}
	slices.Sort(terms)
	return terms
}

// Allowed reports whether the From header value names an allowed sender
func (c *Checker) Allowed(from string) bool {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	addr = strings.ToLower(strings.TrimSpace(addr))

	if c.addresses[addr] {
		return true
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	if c.domains[addr[at+1:]] {
		if c.logger != nil {
			c.logger.Debug("Sender domain is allowed",
				zap.String("domain", addr[at+1:]),
				zap.String("from", from))
		}
		return true
	}

	return false
}
