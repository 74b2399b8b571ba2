package command

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths() Paths {
	return Paths{
		MountDir:   "/data/adb/metamodule/mnt",
		ModulesDir: "/data/adb/modules",
		ImageFile:  "/data/adb/metamodule/modules.img",
		LiveFile:   "/data/adb/metamodule/live_modules",
		LogFile:    "/data/adb/metamodule/meta-overlayfs.log",
		Binary:     "/data/adb/metamodule/meta-overlayfs",
	}
}

func TestValidateModuleID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "zygisk_lsposed", false},
		{"valid with dots", "com.example.mod", false},
		{"valid with quote", "it's-fine", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash traversal", "../etc", true},
		{"newline", "a\nb", true},
		{"nul", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModuleID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModuleID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "'plain'"},
		{"", "''"},
		{"it's", `'it'\''s'`},
		{"$(whoami)", "'$(whoami)'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.input))
	}
}

func TestQuoteSurvivesShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	hostile := "a'b; echo pwned $(id) `id`\nline2"
	out, err := exec.Command("sh", "-c", "printf '%s' "+Quote(hostile)).Output()
	require.NoError(t, err)
	assert.Equal(t, hostile, string(out))
}

func TestBuilderCommands(t *testing.T) {
	b := NewBuilder(testPaths())

	assert.Equal(t, "mountpoint -q '/data/adb/metamodule/mnt' && echo 1 || echo 0", b.MountCheck())
	assert.Equal(t, "ls -1 '/data/adb/metamodule/mnt' 2>/dev/null", b.ListMount())
	assert.Equal(t, "[ -f '/data/adb/modules/xposed/update' ] && echo 1 || echo 0",
		b.FileExists(b.MarkerPath("xposed", UpdateMarker)))
	assert.Equal(t, "[ -d '/data/adb/modules/xposed' ] && echo 1 || echo 0", b.DirExists(b.ModuleDir("xposed")))
	assert.Equal(t, "touch '/data/adb/modules/xposed/disable'", b.SetDisabled("xposed", true))
	assert.Equal(t, "rm -f '/data/adb/modules/xposed/disable'", b.SetDisabled("xposed", false))
	assert.Equal(t, "du -sk '/data/adb/modules'/* 2>/dev/null || true", b.ModuleSizes())
	assert.Equal(t, "'/data/adb/metamodule/meta-overlayfs' -u 'xposed'", b.LiveApply("xposed"))

	prop, err := b.ReadProp("xposed", "name")
	require.NoError(t, err)
	assert.Equal(t, "grep '^name=' '/data/adb/modules/xposed/module.prop' 2>/dev/null | cut -d= -f2-", prop)

	_, err = b.ReadProp("xposed", "name;rm")
	assert.Error(t, err)
}

func TestWriteFileRoundTripsThroughShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	b := NewBuilder(testPaths())
	file := dir + "/live"
	bridge := NewShellBridge(nil)

	_, err := bridge.Execute(context.Background(), b.WriteFile(file, "a\nc"))
	require.NoError(t, err)
	out, err := bridge.Execute(context.Background(), b.ReadFile(file))
	require.NoError(t, err)
	assert.Equal(t, "a\nc\n", out)

	_, err = bridge.Execute(context.Background(), b.WriteFile(file, ""))
	require.NoError(t, err)
	out, err = bridge.Execute(context.Background(), b.ReadFile(file))
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = bridge.Execute(context.Background(), b.ReadFile(dir+"/missing"))
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = bridge.Execute(context.Background(), b.WriteFileExact(file, "a\nit's"))
	require.NoError(t, err)
	out, err = bridge.Execute(context.Background(), b.ReadFile(file))
	require.NoError(t, err)
	assert.Equal(t, "a\nit's", out)
}
