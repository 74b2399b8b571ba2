package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/metaoverlayfs/panel/command"
)

// FakeModule is the on-device state of one module in a FakeDevice.
type FakeModule struct {
	// Backing reports whether the backing directory exists.
	Backing  bool
	Disabled bool
	Update   bool
	// Name is the module.prop name; empty means the key is absent.
	Name   string
	SizeKB int64
}

// FakeDevice is an in-memory command.Bridge that understands exactly the
// commands rendered by command.Builder for its layout. Unknown commands
// fail, so a test notices when the panel issues something unexpected.
type FakeDevice struct {
	mu sync.Mutex

	cmds *command.Builder

	Mounted      bool
	MountEntries []string
	Modules      map[string]*FakeModule
	Files        map[string]string
	ImageExists  bool
	ImageSize    int64
	// DFLine is the df -k line reported for the mount point.
	DFLine     string
	Props      map[string]string
	KSUVersion string
	Identity   string

	calls    []string
	failures []failure
	applied  []string
}

type failure struct {
	match func(cmd string) bool
	err   error
}

// NewFakeDevice creates a mounted device with no modules.
func NewFakeDevice(paths command.Paths) *FakeDevice {
	return &FakeDevice{
		cmds:       command.NewBuilder(paths),
		Mounted:    true,
		Modules:    make(map[string]*FakeModule),
		Files:      make(map[string]string),
		Props:      make(map[string]string),
		KSUVersion: "N/A",
		Identity:   "uid=0(root) gid=0(root)",
	}
}

// Builder returns the command builder the device answers.
func (d *FakeDevice) Builder() *command.Builder {
	return d.cmds
}

// AddModule registers a module with a backing directory and lists it
// under the mount point.
func (d *FakeDevice) AddModule(id string, m FakeModule) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	m.Backing = true
	d.Modules[id] = &m
	d.MountEntries = append(d.MountEntries, id)
	return d
}

// AddOrphan lists id under the mount point without a backing directory.
func (d *FakeDevice) AddOrphan(id string) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Modules[id] = &FakeModule{}
	d.MountEntries = append(d.MountEntries, id)
	return d
}

// FailOn makes every command containing substr fail with err.
func (d *FakeDevice) FailOn(substr string, err error) {
	d.FailWhen(func(cmd string) bool { return strings.Contains(cmd, substr) }, err)
}

// FailWhen makes every command matching fn fail with err.
func (d *FakeDevice) FailWhen(fn func(cmd string) bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, failure{match: fn, err: err})
}

// ClearFailures removes all injected failures.
func (d *FakeDevice) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = nil
}

// Calls returns the commands executed so far.
func (d *FakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// Applied returns the module ids passed to the live apply binary.
func (d *FakeDevice) Applied() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.applied)
}

// File returns the content of a file on the device.
func (d *FakeDevice) File(p string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Files[p]
}

// SetFile sets the content of a file on the device.
func (d *FakeDevice) SetFile(p, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Files[p] = content
}

// Module returns a copy of the device state of a module.
func (d *FakeDevice) Module(id string) (FakeModule, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.Modules[id]
	if !ok {
		return FakeModule{}, false
	}
	return *m, true
}

// Execute implements command.Bridge.
func (d *FakeDevice) Execute(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, cmd)
	for _, f := range d.failures {
		if f.match(cmd) {
			return "", f.err
		}
	}
	out, ok := d.dispatch(cmd)
	if !ok {
		return "", fmt.Errorf("fake device: unknown command: %s", cmd)
	}
	return out, nil
}

func bit(v bool) string {
	if v {
		return "1\n"
	}
	return "0\n"
}

func (d *FakeDevice) dispatch(cmd string) (string, bool) {
	b := d.cmds
	p := b.Paths()

	switch cmd {
	case b.MountCheck():
		return bit(d.Mounted), true
	case b.ListMount():
		if !d.Mounted || len(d.MountEntries) == 0 {
			return "", true
		}
		return strings.Join(d.MountEntries, "\n") + "\n", true
	case b.ModuleSizes():
		return d.du(), true
	case b.FileExists(p.ImageFile):
		return bit(d.ImageExists), true
	case b.FileSize(p.ImageFile):
		if d.ImageSize == 0 {
			return "", true
		}
		return strconv.FormatInt(d.ImageSize, 10) + "\n", true
	case b.DiskUsage(p.MountDir):
		if d.DFLine == "" {
			return "", true
		}
		return d.DFLine + "\n", true
	case b.KSUVersion():
		return d.KSUVersion + "\n", true
	case b.Identity():
		return d.Identity + "\n", true
	}

	for name, value := range d.Props {
		if cmd == b.GetProp(name) {
			return value + "\n", true
		}
	}

	for id, m := range d.Modules {
		switch cmd {
		case b.FileExists(b.MarkerPath(id, command.UpdateMarker)):
			return bit(m.Backing && m.Update), true
		case b.DirExists(b.ModuleDir(id)):
			return bit(m.Backing), true
		case b.FileExists(b.MarkerPath(id, command.DisableMarker)):
			return bit(m.Backing && m.Disabled), true
		case b.SetDisabled(id, true):
			m.Disabled = true
			return "", true
		case b.SetDisabled(id, false):
			m.Disabled = false
			return "", true
		case b.LiveApply(id):
			d.applied = append(d.applied, id)
			return "", true
		}
		if prop, _ := b.ReadProp(id, "name"); cmd == prop {
			if m.Name == "" {
				return "", true
			}
			return m.Name + "\n", true
		}
	}

	for _, f := range []string{p.LiveFile, p.LogFile} {
		if out, ok := d.file(f, cmd); ok {
			return out, true
		}
	}
	return "", false
}

func (d *FakeDevice) file(p, cmd string) (string, bool) {
	b := d.cmds
	switch cmd {
	case b.ReadFile(p):
		return d.Files[p], true
	case b.Truncate(p):
		d.Files[p] = ""
		return "", true
	}

	const printfExact = `printf '%s' `
	if rest, ok := strings.CutPrefix(cmd, printfExact); ok {
		quoted, ok := strings.CutSuffix(rest, " > "+command.Quote(p))
		if !ok {
			return "", false
		}
		content, ok := Unquote(quoted)
		if !ok {
			return "", false
		}
		d.Files[p] = content
		return "", true
	}

	const printf = `printf '%s\n' `
	if !strings.HasPrefix(cmd, printf) {
		return "", false
	}
	rest := strings.TrimPrefix(cmd, printf)
	if quoted, ok := strings.CutSuffix(rest, " >> "+command.Quote(p)); ok {
		line, ok := Unquote(quoted)
		if !ok {
			return "", false
		}
		d.Files[p] += line + "\n"
		return "", true
	}
	if quoted, ok := strings.CutSuffix(rest, " > "+command.Quote(p)); ok {
		content, ok := Unquote(quoted)
		if !ok {
			return "", false
		}
		d.Files[p] = content + "\n"
		return "", true
	}
	return "", false
}

func (d *FakeDevice) du() string {
	ids := make([]string, 0, len(d.Modules))
	for id, m := range d.Modules {
		if m.Backing {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d\t%s\n", d.Modules[id].SizeKB, d.cmds.ModuleDir(id))
	}
	return sb.String()
}

// Unquote reverses command.Quote.
func Unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	return strings.ReplaceAll(s[1:len(s)-1], `'\''`, "'"), true
}
