// Package paths provides XDG-compliant path resolution for the panel.
//
// Resolution order:
// 1. METAOVERLAY_HOME (portable root) → $METAOVERLAY_HOME/{config,state,run}
// 2. XDG env vars → $XDG_*_HOME/metaoverlay
// 3. Platform defaults → ~/.config/metaoverlay, ~/.local/state/metaoverlay
package paths

import (
	"os"
	"path/filepath"
)

const appName = "metaoverlay"

// HomeEnv names the portable root override.
const HomeEnv = "METAOVERLAY_HOME"

func base(homeSub, xdgEnv string, fallback ...string) string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, homeSub)
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the configuration directory.
// Used for metaoverlay.yml and its .env file.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the state directory.
// Used for UI preferences, the daemon pid file and logs.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir returns the runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available, falls back to StateDir.
func RuntimeDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the panel daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "metaoverlayd.sock")
}

// PidFilePath returns the path to the panel daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "metaoverlayd.pid")
}

// EnsureDirs creates the panel directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
