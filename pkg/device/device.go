// Package device reads the cosmetic device facts shown on the dashboard.
package device

import (
	"context"
	"strings"

	"github.com/metaoverlayfs/panel/command"
)

// Unknown is shown for any fact that could not be read.
const Unknown = "Unknown"

// Root describes the root solution detected.
type Root string

const (
	RootKernelSU Root = "KernelSU"
	RootPlain    Root = "Root"
	RootNone     Root = "No Root"
)

// Info is a best-effort device description.
type Info struct {
	Model      string `json:"model"`
	Android    string `json:"android"`
	KSUVersion string `json:"ksuVersion"`
	Root       Root   `json:"root"`
	// RootActive reports uid 0 for the panel's commands.
	RootActive bool `json:"rootActive"`
}

// Read queries getprop, ksud and id. Each fact falls back on failure.
func Read(ctx context.Context, bridge command.Bridge, cmds *command.Builder) Info {
	get := func(cmd string) string {
		out, err := bridge.Execute(ctx, cmd)
		out = strings.TrimSpace(out)
		if err != nil || out == "" {
			return Unknown
		}
		return out
	}

	info := Info{
		Model:      get(cmds.GetProp("ro.product.model")),
		Android:    get(cmds.GetProp("ro.build.version.release")),
		KSUVersion: get(cmds.KSUVersion()),
	}

	id, err := bridge.Execute(ctx, cmds.Identity())
	info.RootActive = err == nil && strings.Contains(id, "uid=0")

	ksu := info.KSUVersion != Unknown && info.KSUVersion != "N/A"
	switch {
	case ksu:
		info.Root = RootKernelSU
	case info.RootActive:
		info.Root = RootPlain
	default:
		info.Root = RootNone
	}
	return info
}
