// Package module derives the module inventory from marker files on the
// device. An Inventory is an immutable snapshot: it is rebuilt wholesale on
// every refresh and consumers re-resolve modules by id after each one.
package module

import (
	"slices"
	"strings"
)

// Status is the single reconciled state of a module.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusUpdating Status = "updating"
)

// Module is one overlay module instance within an Inventory snapshot.
type Module struct {
	ID string `json:"id"`
	// Name is the module.prop name, empty when absent.
	Name               string `json:"name,omitempty"`
	Enabled            bool   `json:"enabled"`
	HasUpdatePending   bool   `json:"hasUpdatePending"`
	ExistsInBackingDir bool   `json:"existsInBackingDir"`
	SizeBytes          int64  `json:"sizeBytes"`
	// Degraded lists the checks that fell back to their default value.
	Degraded []string `json:"degraded,omitempty"`
}

// DisplayName returns the module.prop name, or the id when there is none.
func (m Module) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Status reconciles the module flags into one state. An update pending
// always wins.
func (m Module) Status() Status {
	switch {
	case m.HasUpdatePending:
		return StatusUpdating
	case m.Enabled:
		return StatusActive
	default:
		return StatusInactive
	}
}

// DeriveEnabled applies the derivation rule: an update in progress means
// inactive; an orphaned mount entry (no backing directory) is inactive;
// otherwise the module is enabled unless the disable marker is present.
func DeriveEnabled(hasUpdatePending, existsInBackingDir, disableMarkerPresent bool) bool {
	if hasUpdatePending {
		return false
	}
	if !existsInBackingDir {
		return false
	}
	return !disableMarkerPresent
}

// Inventory is an ordered sequence of modules, unique by id.
type Inventory []Module

// Find resolves a module by id.
func (inv Inventory) Find(id string) (Module, bool) {
	for _, m := range inv {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Clone returns a deep copy, safe to patch without affecting readers of
// the original snapshot.
func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	for i, m := range inv {
		m.Degraded = slices.Clone(m.Degraded)
		out[i] = m
	}
	return out
}

// With returns a copy of the inventory with the module of the same id
// replaced by m. The receiver is left untouched.
func (inv Inventory) With(m Module) Inventory {
	out := inv.Clone()
	for i := range out {
		if out[i].ID == m.ID {
			out[i] = m
		}
	}
	return out
}

// Compare orders modules by display name case-insensitively, then by id,
// so names differing only in case sort deterministically.
func Compare(a, b Module) int {
	an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
	if c := strings.Compare(an, bn); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Sort orders modules in place by Compare.
func Sort(mods []Module) {
	slices.SortStableFunc(mods, Compare)
}
