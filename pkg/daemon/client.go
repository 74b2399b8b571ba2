// Package daemon provides a client for the panel daemon. When the daemon
// is running, calls go over its unix socket; otherwise they fall back to
// an in-process panel.
package daemon

import (
	"context"

	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
)

// Client defines the panel operations available to the CLI.
// Both RemoteClient (socket) and LocalClient (in-process) implement it.
type Client interface {
	// Modules returns the modules view. An empty filter uses the stored
	// preference.
	Modules(ctx context.Context, filter, search string) (view.View, error)

	// Dashboard returns the dashboard projection.
	Dashboard(ctx context.Context) (panel.Dashboard, error)

	// ToggleModule enables or disables a module.
	ToggleModule(ctx context.Context, id string, enable bool) (module.Module, error)

	// Live returns the live set.
	Live(ctx context.Context) (liveset.Set, error)

	// ToggleLive adds a module to or removes it from the live set.
	ToggleLive(ctx context.Context, id string, enable bool) (liveset.Set, error)

	// LiveApply patches a live-enabled module into the running system.
	LiveApply(ctx context.Context, id string) (ApplyResult, error)

	// Refresh runs a manual refresh of surface.
	Refresh(ctx context.Context, surface refresh.Surface) (RefreshResult, error)

	// Prefs returns the UI preferences.
	Prefs(ctx context.Context) (state.Prefs, error)

	// SetPrefs changes the preferences named in patch.
	SetPrefs(ctx context.Context, patch PrefsPatch) (state.Prefs, error)

	// ReadLog returns the device activity log.
	ReadLog(ctx context.Context) (LogBody, error)

	// ClearLog empties the device activity log.
	ClearLog(ctx context.Context) error

	// Stream subscribes to state changes. The channel is closed when ctx
	// is canceled or the connection is lost.
	Stream(ctx context.Context) (<-chan StreamMessage, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
