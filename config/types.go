package config

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/metaoverlayfs/panel/command"
)

// Config is the panel configuration as read from metaoverlay.yml or
// metaoverlay.toml.
type Config struct {
	Device  DeviceConfig  `yaml:"device,omitempty" toml:"device" json:"device,omitempty" jsonschema:"description=Device layout of the overlay image and module directories"`
	Bridge  BridgeConfig  `yaml:"bridge,omitempty" toml:"bridge" json:"bridge,omitempty" jsonschema:"description=How shell commands reach the device"`
	Refresh RefreshConfig `yaml:"refresh,omitempty" toml:"refresh" json:"refresh,omitempty" jsonschema:"description=Periodic refresh intervals per surface"`
	Server  ServerConfig  `yaml:"server,omitempty" toml:"server" json:"server,omitempty" jsonschema:"description=Daemon listeners"`
	Logging LoggingConfig `yaml:"logging,omitempty" toml:"logging" json:"logging,omitempty" jsonschema:"description=Diagnostic logging"`
}

// DeviceConfig locates everything the panel reads or writes on the device.
type DeviceConfig struct {
	MountDir    string   `yaml:"mount_dir,omitempty" toml:"mount_dir" json:"mount_dir,omitempty" jsonschema:"description=Mount point of the overlay image"`
	ModulesDir  string   `yaml:"modules_dir,omitempty" toml:"modules_dir" json:"modules_dir,omitempty" jsonschema:"description=Directory holding module backing directories"`
	ImageFile   string   `yaml:"image_file,omitempty" toml:"image_file" json:"image_file,omitempty" jsonschema:"description=Overlay image file"`
	LiveFile    string   `yaml:"live_file,omitempty" toml:"live_file" json:"live_file,omitempty" jsonschema:"description=Newline separated list of live-patched module ids"`
	LogFile     string   `yaml:"log_file,omitempty" toml:"log_file" json:"log_file,omitempty" jsonschema:"description=Activity log on the device"`
	Binary      string   `yaml:"binary,omitempty" toml:"binary" json:"binary,omitempty" jsonschema:"description=meta-overlayfs binary used for live apply"`
	Exclude     []string `yaml:"exclude,omitempty" toml:"exclude" json:"exclude,omitempty" jsonschema:"description=Mount entries never treated as modules (patterns)"`
	Concurrency int      `yaml:"concurrency,omitempty" toml:"concurrency" json:"concurrency,omitempty" jsonschema:"minimum=1,description=Modules probed in parallel"`
}

// BridgeConfig selects the command bridge.
type BridgeConfig struct {
	Mode    string        `yaml:"mode,omitempty" toml:"mode" json:"mode,omitempty" jsonschema:"enum=shell,enum=preview,description=shell runs commands; preview fails every command"`
	Shell   []string      `yaml:"shell,omitempty" toml:"shell" json:"shell,omitempty" jsonschema:"description=Shell argv prefix; the command is appended as the last argument"`
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout" json:"timeout,omitempty" jsonschema:"type=string,description=Per-command timeout such as 5s; empty means none"`
}

// RefreshConfig holds the periodic refresh cadence of each surface.
type RefreshConfig struct {
	DashboardInterval time.Duration `yaml:"dashboard_interval,omitempty" toml:"dashboard_interval" json:"dashboard_interval,omitempty" jsonschema:"type=string,description=Dashboard refresh interval"`
	ModulesInterval   time.Duration `yaml:"modules_interval,omitempty" toml:"modules_interval" json:"modules_interval,omitempty" jsonschema:"type=string,description=Module list refresh interval"`
}

// ServerConfig configures the daemon listeners.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty" toml:"listen" json:"listen,omitempty" jsonschema:"description=TCP address for the browser panel; empty disables it"`
	Socket string `yaml:"socket,omitempty" toml:"socket" json:"socket,omitempty" jsonschema:"description=Unix socket for the CLI"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,description=Minimum level"`
	Format string `yaml:"format,omitempty" toml:"format" json:"format,omitempty" jsonschema:"enum=text,enum=json"`
	File   string `yaml:"file,omitempty" toml:"file" json:"file,omitempty" jsonschema:"description=Also append logs to this file"`
}

// Paths converts the device section to the layout the command builder
// renders against.
func (d DeviceConfig) Paths() command.Paths {
	return command.Paths{
		MountDir:   d.MountDir,
		ModulesDir: d.ModulesDir,
		ImageFile:  d.ImageFile,
		LiveFile:   d.LiveFile,
		LogFile:    d.LogFile,
		Binary:     d.Binary,
	}
}

// decode maps a generic document onto a Config, converting duration
// strings and comma separated lists along the way.
func decode(raw map[string]interface{}, target *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "yaml",
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
