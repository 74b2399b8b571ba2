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

// LocalClient implements Client over an in-process panel. It is used when
// the daemon is not running; reads refresh first because nothing keeps
// the panel current in the background.
type LocalClient struct {
	panel *panel.Panel
}

// NewLocalClient wraps p.
func NewLocalClient(p *panel.Panel) *LocalClient {
	return &LocalClient{panel: p}
}

// Panel returns the wrapped panel.
func (c *LocalClient) Panel() *panel.Panel {
	return c.panel
}

// Modules implements Client.
func (c *LocalClient) Modules(ctx context.Context, filter, search string) (view.View, error) {
	if err := c.panel.Refresh(ctx, refresh.Modules); err != nil {
		return view.View{}, err
	}
	st := c.panel.ViewState(search)
	if filter != "" {
		f, err := view.ParseFilter(filter)
		if err != nil {
			return view.View{}, err
		}
		st.Filter = f
	}
	return c.panel.Snapshot().View(st), nil
}

// Dashboard implements Client.
func (c *LocalClient) Dashboard(ctx context.Context) (panel.Dashboard, error) {
	if err := c.panel.Refresh(ctx, refresh.Dashboard); err != nil {
		return panel.Dashboard{}, err
	}
	return c.panel.Snapshot().Dashboard(), nil
}

// ToggleModule implements Client. The inventory is loaded first so the
// module can be resolved.
func (c *LocalClient) ToggleModule(ctx context.Context, id string, enable bool) (module.Module, error) {
	if err := c.panel.Refresh(ctx, refresh.Modules); err != nil {
		return module.Module{}, err
	}
	return c.panel.ToggleModule(ctx, id, enable)
}

// Live implements Client.
func (c *LocalClient) Live(ctx context.Context) (liveset.Set, error) {
	if err := c.panel.Refresh(ctx, refresh.Modules); err != nil {
		return liveset.Set{}, err
	}
	return c.panel.Snapshot().Live, nil
}

// ToggleLive implements Client.
func (c *LocalClient) ToggleLive(ctx context.Context, id string, enable bool) (liveset.Set, error) {
	if err := c.panel.Refresh(ctx, refresh.Modules); err != nil {
		return liveset.Set{}, err
	}
	return c.panel.ToggleLive(ctx, id, enable)
}

// LiveApply implements Client.
func (c *LocalClient) LiveApply(ctx context.Context, id string) (ApplyResult, error) {
	if err := c.panel.Refresh(ctx, refresh.Modules); err != nil {
		return ApplyResult{}, err
	}
	out, err := c.panel.LiveApply(ctx, id)
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Module: id, Output: out}, nil
}

// Refresh implements Client.
func (c *LocalClient) Refresh(ctx context.Context, surface refresh.Surface) (RefreshResult, error) {
	if surface == "" {
		surface = c.panel.Surface()
	}
	if err := c.panel.Refresh(ctx, surface); err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Surface: surface, Generation: c.panel.Snapshot().Generation}, nil
}

// Prefs implements Client.
func (c *LocalClient) Prefs(ctx context.Context) (state.Prefs, error) {
	return c.panel.Prefs(), nil
}

// SetPrefs implements Client.
func (c *LocalClient) SetPrefs(ctx context.Context, patch PrefsPatch) (state.Prefs, error) {
	return c.panel.UpdatePrefs(func(p *state.Prefs) { patch.Apply(p) })
}

// ReadLog implements Client.
func (c *LocalClient) ReadLog(ctx context.Context) (LogBody, error) {
	log := c.panel.Activity()
	text, err := log.Read(ctx)
	if err != nil {
		return LogBody{}, err
	}
	return LogBody{Path: log.Path(), Log: text}, nil
}

// ClearLog implements Client.
func (c *LocalClient) ClearLog(ctx context.Context) error {
	return c.panel.Activity().Clear(ctx)
}

// Stream runs the panel's periodic refresh in-process and forwards its
// events until ctx is canceled.
func (c *LocalClient) Stream(ctx context.Context) (<-chan StreamMessage, error) {
	ch := make(chan StreamMessage, 16)
	events := make(chan panel.Event, 16)
	unsubscribe := c.panel.OnEvent(func(e panel.Event) {
		select {
		case events <- e:
		default:
		}
	})

	prefs := c.panel.Prefs()
	initial := StreamMessage{
		Type:     MessageInitial,
		Snapshot: c.panel.Snapshot(),
		Prefs:    &prefs,
		Surface:  c.panel.Surface(),
	}

	go c.panel.Start(ctx)
	go func() {
		defer close(ch)
		defer unsubscribe()

		select {
		case ch <- initial:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				select {
				case ch <- MessageFromEvent(e):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// IsRunning always returns false; there is no daemon behind a LocalClient.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close implements Client.
func (c *LocalClient) Close() error {
	return nil
}

var _ Client = (*LocalClient)(nil)
