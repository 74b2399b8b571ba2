package view

import (
	"strings"

	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
)

// State is the user's current filter and search term.
type State struct {
	Filter Filter `json:"filter" yaml:"filter"`
	Search string `json:"search,omitempty" yaml:"-"`
}

// Counts holds the size of each filter bucket, independent of search.
type Counts struct {
	All      int `json:"all"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Updating int `json:"updating"`
	// Live counts inventory modules in the live set. Ids in the live set
	// with no module in the inventory are not counted.
	Live int `json:"live"`
}

// Get returns the count for a filter.
func (c Counts) Get(f Filter) int {
	switch f {
	case FilterActive:
		return c.Active
	case FilterInactive:
		return c.Inactive
	case FilterUpdating:
		return c.Updating
	case FilterLive:
		return c.Live
	default:
		return c.All
	}
}

// Count computes the bucket counts of an inventory.
func Count(inv module.Inventory, live liveset.Set) Counts {
	c := Counts{All: len(inv)}
	for _, m := range inv {
		switch {
		case FilterUpdating.Matches(m, live):
			c.Updating++
		case FilterActive.Matches(m, live):
			c.Active++
		default:
			c.Inactive++
		}
		if FilterLive.Matches(m, live) {
			c.Live++
		}
	}
	return c
}

// MatchesSearch is a case-insensitive substring match against the id or
// the module.prop name. An empty term matches everything.
func MatchesSearch(m module.Module, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(m.ID), term) {
		return true
	}
	return m.Name != "" && strings.Contains(strings.ToLower(m.Name), term)
}

// Project returns the modules of inv selected by filter and search, in
// inventory order.
func Project(inv module.Inventory, live liveset.Set, filter Filter, search string) module.Inventory {
	out := module.Inventory{}
	for _, m := range inv {
		if filter.Matches(m, live) && MatchesSearch(m, search) {
			out = append(out, m)
		}
	}
	return out
}

// Item is one rendered row.
type Item struct {
	module.Module
	DisplayName string        `json:"displayName"`
	Status      module.Status `json:"status"`
	Live        bool          `json:"live"`
}

// View is everything a modules surface needs to render.
type View struct {
	Filter      Filter `json:"filter"`
	Search      string `json:"search,omitempty"`
	Items       []Item `json:"items"`
	Counts      Counts `json:"counts"`
	LiveSetSize int    `json:"liveSetSize"`
	// EmptyMessage is set when Items is empty.
	EmptyMessage string `json:"emptyMessage,omitempty"`
}

// Build projects inv and live under st.
func Build(inv module.Inventory, live liveset.Set, st State) View {
	if st.Filter == "" {
		st.Filter = FilterAll
	}
	mods := Project(inv, live, st.Filter, st.Search)
	v := View{
		Filter:      st.Filter,
		Search:      st.Search,
		Items:       make([]Item, 0, len(mods)),
		Counts:      Count(inv, live),
		LiveSetSize: live.Len(),
	}
	for _, m := range mods {
		v.Items = append(v.Items, Item{
			Module:      m,
			DisplayName: m.DisplayName(),
			Status:      m.Status(),
			Live:        live.Has(m.ID),
		})
	}
	if len(v.Items) == 0 {
		v.EmptyMessage = EmptyMessage(st.Filter)
	}
	return v
}
