// Package store holds the daemon's view of the panel state and fans
// changes out to stream subscribers.
package store

import (
	"github.com/metaoverlayfs/panel/pkg/panel"
)

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	// UpdateSnapshot carries a newly published panel snapshot.
	UpdateSnapshot UpdateType = "snapshot"
	// UpdatePrefs carries changed UI preferences.
	UpdatePrefs UpdateType = "prefs"
	// UpdateSurface carries a change of the active surface.
	UpdateSurface UpdateType = "surface"
	// UpdateTick reports the outcome of a periodic refresh tick.
	UpdateTick UpdateType = "tick"
	// UpdateFileChanged reports an on-disk change of a watched file.
	UpdateFileChanged UpdateType = "file_changed"
)

// Update represents a change to the state.
type Update struct {
	Type UpdateType `json:"type"`
	// Source names the collector that sent the update.
	Source string `json:"source,omitempty"`
	// Event is set for snapshot, prefs and surface updates.
	Event *panel.Event `json:"event,omitempty"`
	// Detail is a short human readable note for tick and file updates.
	Detail string `json:"detail,omitempty"`
}

// Stats counts what the store has seen since start.
type Stats struct {
	Applied     int    `json:"applied"`
	Dropped     int    `json:"dropped"`
	Subscribers int    `json:"subscribers"`
	Generation  uint64 `json:"generation"`
}
