package panel

import (
	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/config"
	"github.com/metaoverlayfs/panel/state"
)

// NewBridge builds the command bridge selected by cfg.
func NewBridge(cfg config.BridgeConfig, logger *logrus.Entry) command.Bridge {
	if cfg.Mode == config.BridgePreview {
		return command.PreviewBridge{}
	}
	return command.NewShellBridge(logger,
		command.WithShell(cfg.Shell...),
		command.WithTimeout(cfg.Timeout))
}

// NewFromConfig builds a Panel, and its bridge, from a loaded
// configuration. prefs may be nil.
func NewFromConfig(cfg *config.Config, prefs *state.File, logger *logrus.Entry) (*Panel, error) {
	return New(NewBridge(cfg.Bridge, logger.WithField("component", "bridge")), Options{
		Paths:             cfg.Device.Paths(),
		Excludes:          cfg.Device.Exclude,
		Concurrency:       cfg.Device.Concurrency,
		DashboardInterval: cfg.Refresh.DashboardInterval,
		ModulesInterval:   cfg.Refresh.ModulesInterval,
		Prefs:             prefs,
		Logger:            logger,
	})
}
