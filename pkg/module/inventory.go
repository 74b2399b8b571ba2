package module

import (
	"bufio"
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/metaoverlayfs/panel/command"
)

// DefaultExcludes are mount point entries that are never modules.
var DefaultExcludes = []string{"lost+found"}

const defaultConcurrency = 4

// Loader builds the Inventory from the mount point and the backing
// directories.
type Loader struct {
	bridge      command.Bridge
	cmds        *command.Builder
	prober      *Prober
	exclude     *patternmatcher.PatternMatcher
	concurrency int
	logger      *logrus.Entry
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConcurrency bounds the number of modules probed in parallel.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger used for degraded checks.
func WithLogger(logger *logrus.Entry) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader. excludes are patternmatcher patterns matched
// against mount point entry names; nil selects DefaultExcludes.
func NewLoader(bridge command.Bridge, cmds *command.Builder, excludes []string, opts ...LoaderOption) (*Loader, error) {
	if excludes == nil {
		excludes = DefaultExcludes
	}
	pm, err := patternmatcher.New(excludes)
	if err != nil {
		return nil, err
	}
	l := &Loader{
		bridge:      bridge,
		cmds:        cmds,
		prober:      NewProber(bridge, cmds),
		exclude:     pm,
		concurrency: defaultConcurrency,
		logger:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Mounted reports whether the overlay image is mounted. A failed check
// reads as not mounted.
func (l *Loader) Mounted(ctx context.Context) bool {
	out, err := l.bridge.Execute(ctx, l.cmds.MountCheck())
	if err != nil {
		l.logger.WithError(err).Debug("Mount check failed")
		return false
	}
	return strings.TrimSpace(out) == "1"
}

// Load builds a fresh Inventory. Bridge failures never surface as an
// error: an unmounted image or unreadable listing yields an empty
// inventory and per-module failures degrade the affected fields. The only
// error returned is cancellation of ctx.
func (l *Loader) Load(ctx context.Context) (Inventory, error) {
	if !l.Mounted(ctx) {
		return Inventory{}, ctx.Err()
	}

	ids := l.list(ctx)
	if len(ids) == 0 {
		return Inventory{}, ctx.Err()
	}

	sizes := l.sizes(ctx)

	mods := make(Inventory, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			mods[i] = l.build(gctx, id, sizes)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Sort(mods)
	return mods, nil
}

func (l *Loader) build(ctx context.Context, id string, sizes map[string]int64) Module {
	probe := l.prober.Probe(ctx, l.cmds.ModuleDir(id))
	name := l.prober.DisplayName(ctx, id)

	m := Module{
		ID:                 id,
		Name:               name.Value,
		Enabled:            probe.Enabled(),
		HasUpdatePending:   probe.HasUpdatePending.Value,
		ExistsInBackingDir: probe.ExistsInBackingDir.Value,
		Degraded:           probe.DegradedChecks(),
	}
	if name.Degraded() {
		m.Degraded = append(m.Degraded, CheckName)
	}
	if size, ok := sizes[id]; ok {
		m.SizeBytes = size
	} else if m.ExistsInBackingDir {
		m.Degraded = append(m.Degraded, CheckSize)
	}

	if len(m.Degraded) > 0 {
		l.logger.WithFields(logrus.Fields{
			"module": id,
			"checks": m.Degraded,
		}).Debug("Module probed with degraded checks")
	}
	return m
}

// list returns the mount point entries in listing order, deduplicated
// with the first occurrence kept, excludes and malformed names dropped.
func (l *Loader) list(ctx context.Context) []string {
	out, err := l.bridge.Execute(ctx, l.cmds.ListMount())
	if err != nil {
		l.logger.WithError(err).Warn("Failed to list mount point")
		return nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		if command.ValidateModuleID(id) != nil {
			continue
		}
		if excluded, err := l.exclude.MatchesOrParentMatches(id); err == nil && excluded {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// sizes maps backing directory names to their disk usage in bytes.
func (l *Loader) sizes(ctx context.Context) map[string]int64 {
	out, err := l.bridge.Execute(ctx, l.cmds.ModuleSizes())
	if err != nil {
		l.logger.WithError(err).Debug("Failed to read module sizes")
		return nil
	}
	return ParseSizes(out)
}

// ParseSizes parses `du -sk` output into sizes in bytes keyed by the
// last path component.
func ParseSizes(out string) map[string]int64 {
	sizes := make(map[string]int64)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		name := path.Base(strings.Join(fields[1:], " "))
		sizes[name] = kb * 1024
	}
	return sizes
}
