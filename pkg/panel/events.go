package panel

// EventKind says what part of the panel state changed.
type EventKind string

const (
	EventModules     EventKind = "modules"
	EventDashboard   EventKind = "dashboard"
	EventLive        EventKind = "live"
	EventSpeculative EventKind = "speculative"
	EventPrefs       EventKind = "prefs"
	EventSurface     EventKind = "surface"
	EventRefreshFail EventKind = "refresh_failed"
)

// Event is delivered to listeners after every publish.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	// Payload carries prefs or surface changes.
	Payload any `json:"payload,omitempty"`
}

// Listener receives events synchronously and must not block.
type Listener func(Event)
