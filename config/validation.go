package config

import (
	"fmt"
	"path"
	"time"

	"github.com/moby/patternmatcher"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/paths"
)

// Device defaults for a KernelSU install of meta-overlayfs.
const (
	DefaultMountDir   = "/data/adb/metamodule/mnt"
	DefaultModulesDir = "/data/adb/modules"
	DefaultImageFile  = "/data/adb/metamodule/modules.img"
	DefaultLiveFile   = "/data/adb/metamodule/live_modules"
	DefaultLogFile    = "/data/adb/metamodule/meta-overlayfs.log"
	DefaultBinary     = "/data/adb/metamodule/meta-overlayfs"

	DefaultDashboardInterval = 10 * time.Second
	DefaultModulesInterval   = 15 * time.Second
	DefaultConcurrency       = 4
	DefaultListen            = "127.0.0.1:8177"
)

// Bridge modes.
const (
	BridgeShell   = "shell"
	BridgePreview = "preview"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	d := &c.Device
	if d.MountDir == "" {
		d.MountDir = DefaultMountDir
	}
	if d.ModulesDir == "" {
		d.ModulesDir = DefaultModulesDir
	}
	if d.ImageFile == "" {
		d.ImageFile = DefaultImageFile
	}
	if d.LiveFile == "" {
		d.LiveFile = DefaultLiveFile
	}
	if d.LogFile == "" {
		d.LogFile = DefaultLogFile
	}
	if d.Binary == "" {
		d.Binary = DefaultBinary
	}
	if d.Exclude == nil {
		d.Exclude = []string{"lost+found"}
	}
	if d.Concurrency == 0 {
		d.Concurrency = DefaultConcurrency
	}

	if c.Bridge.Mode == "" {
		c.Bridge.Mode = BridgeShell
	}
	if len(c.Bridge.Shell) == 0 {
		c.Bridge.Shell = []string{"sh", "-c"}
	}

	if c.Refresh.DashboardInterval == 0 {
		c.Refresh.DashboardInterval = DefaultDashboardInterval
	}
	if c.Refresh.ModulesInterval == 0 {
		c.Refresh.ModulesInterval = DefaultModulesInterval
	}

	if c.Server.Socket == "" {
		c.Server.Socket = paths.SocketPath()
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks a defaulted configuration.
func (c *Config) Validate() error {
	device := []struct{ key, value string }{
		{"mount_dir", c.Device.MountDir},
		{"modules_dir", c.Device.ModulesDir},
		{"image_file", c.Device.ImageFile},
		{"live_file", c.Device.LiveFile},
		{"log_file", c.Device.LogFile},
		{"binary", c.Device.Binary},
	}
	for _, f := range device {
		if !path.IsAbs(f.value) {
			return errors.ConfigInvalid(fmt.Sprintf("device.%s must be an absolute path", f.key)).
				WithDetail("value", f.value)
		}
	}

	if c.Device.Concurrency < 1 {
		return errors.ConfigInvalid("device.concurrency must be at least 1").
			WithDetail("value", c.Device.Concurrency)
	}
	if _, err := patternmatcher.New(c.Device.Exclude); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid device.exclude pattern")
	}

	switch c.Bridge.Mode {
	case BridgeShell, BridgePreview:
	default:
		return errors.ConfigInvalid("unknown bridge mode").
			WithDetail("mode", c.Bridge.Mode).
			WithDetail("valid", []string{BridgeShell, BridgePreview})
	}
	if c.Bridge.Timeout < 0 {
		return errors.ConfigInvalid("bridge.timeout must not be negative")
	}

	if c.Refresh.DashboardInterval <= 0 || c.Refresh.ModulesInterval <= 0 {
		return errors.ConfigInvalid("refresh intervals must be positive")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.ConfigInvalid("unknown logging format").WithDetail("format", c.Logging.Format)
	}

	return nil
}
