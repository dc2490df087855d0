// Package directory resolves chat identifiers to display names.
package directory

import (
	"strings"

	"github.com/mikey/signal-mail-bridge/internal/config"
)

// AddressDirectory is a read-only mapping of phone numbers and stable ids to display names
type AddressDirectory struct {
	byNumber map[string]string
	byID     map[string]string
}

// New builds a directory from address book entries. Entries without a
// name are skipped; later entries win on duplicate identifiers.
func New(entries []config.AddressEntry) *AddressDirectory {
	d := &AddressDirectory{
		byNumber: make(map[string]string, len(entries)),
		byID:     make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		if number := strings.TrimSpace(e.Number); number != "" {
			d.byNumber[number] = name
		}
		if id := strings.TrimSpace(e.ID); id != "" {
			d.byID[id] = name
		}
	}
	return d
}

// ByNumber looks up a display name by phone number
func (d *AddressDirectory) ByNumber(number string) (string, bool) {
	if number == "" {
		return "", false
	}
	name, ok := d.byNumber[number]
	return name, ok
}

// ByID looks up a display name by stable identifier
func (d *AddressDirectory) ByID(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	name, ok := d.byID[id]
	return name, ok
}

// Resolution is the outcome of looking up both identifiers of a sender
type Resolution struct {
	Name       string
	FromNumber string
	FromID     string
	Resolved   bool
	Conflict   bool
}

// Resolve looks up number and id independently. The number lookup wins,
// the id lookup is the fallback. Conflict is set when both resolve to
// different names.
func (d *AddressDirectory) Resolve(number, id string) Resolution {
	byNumber, okNumber := d.ByNumber(number)
	byID, okID := d.ByID(id)

	res := Resolution{FromNumber: byNumber, FromID: byID}
	switch {
	case okNumber:
		res.Name, res.Resolved = byNumber, true
	case okID:
		res.Name, res.Resolved = byID, true
	}
	res.Conflict = okNumber && okID && byNumber != byID
	return res
}

// Len returns the number of distinct identifiers known to the directory
func (d *AddressDirectory) Len() int {
	return len(d.byNumber) + len(d.byID)
}
