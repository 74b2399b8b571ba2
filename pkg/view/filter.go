// Package view projects an inventory and live set into the filtered,
// searched list a surface renders, together with per-filter counts.
// Everything here is a pure function of its inputs.
package view

import (
	"fmt"
	"slices"
	"strings"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
)

// Filter selects a bucket of the inventory.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterInactive Filter = "inactive"
	FilterUpdating Filter = "updating"
	FilterLive     Filter = "live"
)

// Filters lists every filter in tab order.
var Filters = []Filter{FilterAll, FilterActive, FilterInactive, FilterUpdating, FilterLive}

// ParseFilter parses a filter name. The empty string selects FilterAll.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterAll, nil
	}
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Filters, f) {
		return "", errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown filter %q", s)).
			WithDetail("valid", Filters)
	}
	return f, nil
}

// Next returns the following filter in tab order, wrapping around.
func (f Filter) Next() Filter {
	return f.step(1)
}

// Prev returns the preceding filter in tab order, wrapping around.
func (f Filter) Prev() Filter {
	return f.step(-1)
}

func (f Filter) step(d int) Filter {
	i := slices.Index(Filters, f)
	if i < 0 {
		return FilterAll
	}
	n := len(Filters)
	return Filters[(i+d+n)%n]
}

// Label is the capitalized filter name.
func (f Filter) Label() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// Matches reports bucket membership. active, inactive and updating
// partition the inventory; live is an orthogonal axis.
func (f Filter) Matches(m module.Module, live liveset.Set) bool {
	switch f {
	case FilterActive:
		return m.Enabled && !m.HasUpdatePending
	case FilterInactive:
		return !m.Enabled && !m.HasUpdatePending
	case FilterUpdating:
		return m.HasUpdatePending
	case FilterLive:
		return live.Has(m.ID)
	default:
		return true
	}
}

// EmptyMessage is the guidance shown when a filter has nothing to list.
func EmptyMessage(f Filter) string {
	switch f {
	case FilterAll:
		return "No modules are currently loaded in the image."
	case FilterLive:
		return "No modules are enabled for live patching. Use the Live button next to each module to enable."
	default:
		return fmt.Sprintf("No %s modules found.", f)
	}
}
