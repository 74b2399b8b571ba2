package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/metaoverlayfs/panel/command"
)

// Check names used in Module.Degraded.
const (
	CheckUpdate  = "update"
	CheckExists  = "exists"
	CheckDisable = "disable"
	CheckName    = "name"
	CheckSize    = "size"
)

// Probe is the raw status record of one module directory.
type Probe struct {
	HasUpdatePending     Result[bool]
	ExistsInBackingDir   Result[bool]
	DisableMarkerPresent Result[bool]
	// DisableSkipped is set when the backing directory was absent and the
	// disable check was not issued.
	DisableSkipped bool
}

// Enabled applies DeriveEnabled to the probed values.
func (p Probe) Enabled() bool {
	return DeriveEnabled(p.HasUpdatePending.Value, p.ExistsInBackingDir.Value, p.DisableMarkerPresent.Value)
}

// DegradedChecks lists the checks that fell back to a default.
func (p Probe) DegradedChecks() []string {
	var out []string
	if p.HasUpdatePending.Degraded() {
		out = append(out, CheckUpdate)
	}
	if p.ExistsInBackingDir.Degraded() {
		out = append(out, CheckExists)
	}
	if p.DisableMarkerPresent.Degraded() {
		out = append(out, CheckDisable)
	}
	return out
}

// Prober issues the marker checks for a single module. Every check
// swallows its own failure: a module with unreadable metadata is shown
// with a best-guess status instead of blanking the inventory.
type Prober struct {
	bridge command.Bridge
	cmds   *command.Builder
}

// NewProber creates a Prober.
func NewProber(bridge command.Bridge, cmds *command.Builder) *Prober {
	return &Prober{bridge: bridge, cmds: cmds}
}

// Probe checks the update marker, the backing directory and the disable
// marker of dir. When the directory is missing the disable check is
// skipped and the marker assumed present.
func (p *Prober) Probe(ctx context.Context, dir string) Probe {
	var res Probe
	res.HasUpdatePending = p.flag(ctx, p.cmds.FileExists(dir+"/"+command.UpdateMarker))
	res.ExistsInBackingDir = p.flag(ctx, p.cmds.DirExists(dir))

	if !res.ExistsInBackingDir.Value {
		res.DisableMarkerPresent = Observed(true)
		res.DisableSkipped = true
		return res
	}

	// A failed disable check counts as marker absent.
	res.DisableMarkerPresent = p.flag(ctx, p.cmds.FileExists(dir+"/"+command.DisableMarker))
	return res
}

// flag runs a command printing 1 or 0. Failures and unexpected output
// degrade to false.
func (p *Prober) flag(ctx context.Context, cmd string) Result[bool] {
	out, err := p.bridge.Execute(ctx, cmd)
	if err != nil {
		return Degrade(false, err)
	}
	switch strings.TrimSpace(out) {
	case "1":
		return Observed(true)
	case "0":
		return Observed(false)
	default:
		return Degrade(false, fmt.Errorf("unexpected output %q", strings.TrimSpace(out)))
	}
}

// DisplayName reads the name key of a module's module.prop. Absence of
// the file or key yields an observed empty string.
func (p *Prober) DisplayName(ctx context.Context, id string) Result[string] {
	cmd, err := p.cmds.ReadProp(id, "name")
	if err != nil {
		return Degrade("", err)
	}
	out, err := p.bridge.Execute(ctx, cmd)
	if err != nil {
		return Degrade("", err)
	}
	// grep may match more than once; the first value wins.
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return Observed(strings.TrimSpace(line))
}
