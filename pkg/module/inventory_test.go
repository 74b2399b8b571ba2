package module_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/testutil"
)

func newLoader(t *testing.T, dev *testutil.FakeDevice) *module.Loader {
	t.Helper()
	l, err := module.NewLoader(dev, dev.Builder(), nil, module.WithConcurrency(2))
	require.NoError(t, err)
	return l
}

func ids(inv module.Inventory) []string {
	out := make([]string, len(inv))
	for i, m := range inv {
		out[i] = m.ID
	}
	return out
}

func TestLoadNotMounted(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("a", testutil.FakeModule{})
	dev.Mounted = false

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inv)
	assert.Len(t, dev.Calls(), 1, "nothing beyond the mount check should run")
}

func TestLoadMountCheckFailure(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("a", testutil.FakeModule{})
	dev.FailOn("mountpoint", errors.New("bridge down"))

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestLoadListingFailure(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("a", testutil.FakeModule{})
	dev.FailOn("ls -1", errors.New("permission denied"))

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestLoadUpdatePendingWins(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("xposed", testutil.FakeModule{Update: true, Disabled: true, Name: "LSPosed"})

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, inv, 1)

	m := inv[0]
	assert.True(t, m.HasUpdatePending)
	assert.False(t, m.Enabled)
	assert.Equal(t, module.StatusUpdating, m.Status())
	assert.Equal(t, "LSPosed", m.DisplayName())
}

func TestLoadDerivesEnabled(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("on", testutil.FakeModule{SizeKB: 8})
	dev.AddModule("off", testutil.FakeModule{Disabled: true})

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)

	on, ok := inv.Find("on")
	require.True(t, ok)
	assert.True(t, on.Enabled)
	assert.Equal(t, module.StatusActive, on.Status())
	assert.Equal(t, int64(8*1024), on.SizeBytes)
	assert.Empty(t, on.Degraded)

	off, ok := inv.Find("off")
	require.True(t, ok)
	assert.False(t, off.Enabled)
	assert.Equal(t, module.StatusInactive, off.Status())
}

func TestLoadOrphanSkipsDisableCheck(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddOrphan("ghost")

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, inv, 1)

	ghost := inv[0]
	assert.False(t, ghost.ExistsInBackingDir)
	assert.False(t, ghost.Enabled)
	assert.Equal(t, "ghost", ghost.DisplayName())

	disableCheck := dev.Builder().FileExists(dev.Builder().MarkerPath("ghost", command.DisableMarker))
	assert.NotContains(t, dev.Calls(), disableCheck)
}

func TestLoadFailedDisableCheckReadsAsAbsent(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("flaky", testutil.FakeModule{Disabled: true})
	dev.FailOn("/flaky/disable", errors.New("io error"))

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.True(t, inv[0].Enabled)
	assert.Contains(t, inv[0].Degraded, module.CheckDisable)
}

func TestLoadFailedUpdateCheckDefaultsFalse(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("m", testutil.FakeModule{Update: true})
	dev.FailOn("/m/update", errors.New("io error"))

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.False(t, inv[0].HasUpdatePending)
	assert.True(t, inv[0].Enabled)
	assert.Contains(t, inv[0].Degraded, module.CheckUpdate)
}

func TestLoadExcludesAndDeduplicates(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("b", testutil.FakeModule{})
	dev.AddModule("a", testutil.FakeModule{})
	dev.MountEntries = append(dev.MountEntries, "lost+found", "a", "  ", "")

	inv, err := newLoader(t, dev).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(inv))
}

func TestLoadSortTiebreak(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("zygisk-b", testutil.FakeModule{Name: "Zygisk"})
	dev.AddModule("beta", testutil.FakeModule{Name: "beta"})
	dev.AddModule("zygisk-a", testutil.FakeModule{Name: "Zygisk"})
	dev.AddModule("Alpha", testutil.FakeModule{})

	l := newLoader(t, dev)
	for range 5 {
		inv, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "beta", "zygisk-a", "zygisk-b"}, ids(inv))
	}
}

func TestLoadIdempotent(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("one", testutil.FakeModule{Name: "One", SizeKB: 4})
	dev.AddModule("two", testutil.FakeModule{Disabled: true})
	dev.AddOrphan("three")

	l := newLoader(t, dev)
	first, err := l.Load(context.Background())
	require.NoError(t, err)
	second, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadCancelled(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("a", testutil.FakeModule{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLoader(t, dev).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSizes(t *testing.T) {
	sizes := module.ParseSizes("12\t/data/adb/modules/a\nbad line\nx\t/data/adb/modules/b\n3\t/data/adb/modules/with space\n")
	assert.Equal(t, map[string]int64{
		"a":          12 * 1024,
		"with space": 3 * 1024,
	}, sizes)
}
