package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/internal/metrics"
	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
)

func verb(enable bool) string {
	if enable {
		return "Enabling"
	}
	return "Disabling"
}

// ToggleModule creates or removes the disable marker of id. The module is
// resolved in the current snapshot; modules with an update pending or
// without a backing directory are refused. The returned module is the
// reloaded one when the reload succeeded.
func (p *Panel) ToggleModule(ctx context.Context, id string, enable bool) (module.Module, error) {
	if err := command.ValidateModuleID(id); err != nil {
		return module.Module{}, err
	}

	var result module.Module
	err := p.exclusive(ctx, func(ctx context.Context) error {
		m, ok := p.Snapshot().Inventory.Find(id)
		if !ok {
			return errors.ModuleNotFound(id)
		}
		if m.HasUpdatePending {
			return errors.UpdatePending(id)
		}
		if !m.ExistsInBackingDir {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("module '%s' has no backing directory", id)).
				WithDetail("module", id)
		}

		p.activity.Record(ctx, fmt.Sprintf("%s module: %s (%s)", verb(enable), m.DisplayName(), id))

		_, err := p.bridge.Execute(ctx, p.cmds.SetDisabled(id, !enable))
		metrics.ObserveToggle("module", err)
		if err != nil {
			return errors.ToggleFailed(id, enable, err)
		}

		m.Enabled = enable
		p.publish(EventSpeculative, func(s *Snapshot) {
			s.Inventory = s.Inventory.With(m)
			s.Speculative = true
		})
		result = m

		p.logger.WithFields(logrus.Fields{"module": id, "enabled": enable}).Info("Module toggled")
		p.reloadLocked(ctx)
		if fresh, ok := p.Snapshot().Inventory.Find(id); ok {
			result = fresh
		}
		return nil
	})
	return result, err
}

// ToggleLive adds id to or removes it from the live set. Enabling
// requires the module in the current inventory; disabling also accepts
// stale ids. The published live set changes only after the file was
// written.
func (p *Panel) ToggleLive(ctx context.Context, id string, enable bool) (liveset.Set, error) {
	if err := command.ValidateModuleID(id); err != nil {
		return liveset.Set{}, err
	}

	var result liveset.Set
	err := p.exclusive(ctx, func(ctx context.Context) error {
		name := id
		if m, ok := p.Snapshot().Inventory.Find(id); ok {
			name = m.DisplayName()
		} else if enable {
			return errors.ModuleNotFound(id)
		}

		set, err := p.live.Toggle(ctx, id, enable)
		metrics.ObserveToggle("live", err)
		if err != nil {
			return err
		}
		result = set

		p.activity.Record(ctx, fmt.Sprintf("%s live patching: %s (%s)", verb(enable), name, id))
		p.publish(EventLive, func(s *Snapshot) {
			s.Live = set
		})
		p.reloadLocked(ctx)
		return nil
	})
	return result, err
}

// LiveApply patches id into the running system now. The module must be
// active and in the live set.
func (p *Panel) LiveApply(ctx context.Context, id string) (string, error) {
	if err := command.ValidateModuleID(id); err != nil {
		return "", err
	}

	var out string
	err := p.exclusive(ctx, func(ctx context.Context) error {
		snap := p.Snapshot()
		m, ok := snap.Inventory.Find(id)
		if !ok {
			return errors.ModuleNotFound(id)
		}
		switch {
		case m.HasUpdatePending:
			return errors.UpdatePending(id)
		case !m.ExistsInBackingDir:
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("module '%s' has no backing directory", id)).
				WithDetail("module", id)
		case !m.Enabled:
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("module '%s' is disabled", id)).
				WithDetail("module", id)
		case !snap.Live.Has(id):
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("module '%s' is not enabled for live patching", id)).
				WithDetail("module", id)
		}

		p.activity.Record(ctx, fmt.Sprintf("Live patching module: %s (%s)", m.DisplayName(), id))
		res, err := p.bridge.Execute(ctx, p.cmds.LiveApply(id))
		metrics.ObserveToggle("apply", err)
		if err != nil {
			return errors.LiveApplyFailed(id, err)
		}
		out = strings.TrimSpace(res)
		p.logger.WithField("module", id).Info("Module live patched")
		return nil
	})
	return out, err
}
