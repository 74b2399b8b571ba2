package daemon

import (
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/config"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/paths"
	"github.com/metaoverlayfs/panel/state"
)

// New returns a Client that uses the daemon if its socket accepts a
// connection and otherwise falls back to a LocalClient built from cfg.
func New(cfg *config.Config, logger *logrus.Entry) (Client, error) {
	socketPath := cfg.Server.Socket
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	if Reachable(socketPath) {
		logger.WithField("socket", socketPath).Debug("Using running daemon")
		return NewRemoteClient(socketPath), nil
	}

	logger.Debug("Daemon not running, using in-process panel")
	p, err := panel.NewFromConfig(cfg, state.DefaultFile(), logger)
	if err != nil {
		return nil, err
	}
	return NewLocalClient(p), nil
}

// Reachable reports whether a daemon accepts connections on socketPath.
func Reachable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
