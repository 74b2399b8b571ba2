package daemon

import (
	"time"

	"github.com/metaoverlayfs/panel/config"
	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/state"
)

// Stream message types beyond the panel event kinds.
const (
	MessageInitial     = "initial"
	MessageSnapshot    = "snapshot"
	MessagePrefs       = "prefs"
	MessageSurface     = "surface"
	MessageTick        = "tick"
	MessageFileChanged = "file_changed"
)

// StreamMessage is one frame of the SSE and websocket streams.
type StreamMessage struct {
	Type     string          `json:"type"`
	Kind     panel.EventKind `json:"kind,omitempty"`
	Snapshot *panel.Snapshot `json:"snapshot,omitempty"`
	Prefs    *state.Prefs    `json:"prefs,omitempty"`
	Surface  refresh.Surface `json:"surface,omitempty"`
	Source   string          `json:"source,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// MessageFromEvent converts a panel event to its stream form.
func MessageFromEvent(e panel.Event) StreamMessage {
	msg := StreamMessage{Type: MessageSnapshot, Kind: e.Kind, Snapshot: e.Snapshot}
	switch payload := e.Payload.(type) {
	case state.Prefs:
		msg.Type = MessagePrefs
		msg.Prefs = &payload
	case refresh.Surface:
		msg.Type = MessageSurface
		msg.Surface = payload
	}
	return msg
}

// PrefsPatch changes only the fields that are set.
type PrefsPatch struct {
	AutoRefresh *bool   `json:"autoRefresh,omitempty"`
	Filter      *string `json:"filter,omitempty"`
}

// Apply writes the set fields into p.
func (pp PrefsPatch) Apply(p *state.Prefs) {
	if pp.AutoRefresh != nil {
		p.AutoRefresh = *pp.AutoRefresh
	}
	if pp.Filter != nil {
		p.Filter = *pp.Filter
	}
}

// SurfaceBody is the request and response of /api/surface.
type SurfaceBody struct {
	Surface refresh.Surface `json:"surface"`
}

// RefreshResult is returned by /api/refresh.
type RefreshResult struct {
	Surface    refresh.Surface `json:"surface"`
	Generation uint64          `json:"generation"`
}

// ApplyResult is returned by /api/live/{id}/apply.
type ApplyResult struct {
	Module string `json:"module"`
	Output string `json:"output"`
}

// LogBody is returned by GET /api/logs.
type LogBody struct {
	Path string `json:"path"`
	Log  string `json:"log"`
}

// ErrorBody wraps every non-2xx response.
type ErrorBody struct {
	Error *errors.PanelError `json:"error"`
}

// RunningConfig is exposed on /api/config so clients can see what the
// daemon runs with.
type RunningConfig struct {
	Config     *config.Config `json:"config"`
	ConfigFile string         `json:"configFile,omitempty"`
	Collectors []string       `json:"collectors"`
	StartedAt  time.Time      `json:"startedAt"`
}
