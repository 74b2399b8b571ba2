package testutil

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/metaoverlayfs/panel/command"
)

// RequireShell skips the test if no POSIX shell is available
func RequireShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// DefaultPaths returns a device layout rooted at /data/adb, matching the
// defaults the panel ships with.
func DefaultPaths() command.Paths {
	return command.Paths{
		MountDir:   "/data/adb/metamodule/mnt",
		ModulesDir: "/data/adb/modules",
		ImageFile:  "/data/adb/metamodule/modules.img",
		LiveFile:   "/data/adb/metamodule/live_modules",
		LogFile:    "/data/adb/metamodule/meta-overlayfs.log",
		Binary:     "/data/adb/metamodule/meta-overlayfs",
	}
}

// TempPaths returns a device layout rooted in a per-test temporary
// directory, for tests that run commands through a real shell.
func TempPaths(t *testing.T) command.Paths {
	t.Helper()

	root := t.TempDir()
	return command.Paths{
		MountDir:   filepath.Join(root, "mnt"),
		ModulesDir: filepath.Join(root, "modules"),
		ImageFile:  filepath.Join(root, "modules.img"),
		LiveFile:   filepath.Join(root, "live_modules"),
		LogFile:    filepath.Join(root, "meta-overlayfs.log"),
		Binary:     filepath.Join(root, "meta-overlayfs"),
	}
}
