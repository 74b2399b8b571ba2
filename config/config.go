package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/paths"
	"github.com/metaoverlayfs/panel/schema"
)

// EnvConfig names the environment variable pointing at a config file.
const EnvConfig = "METAOVERLAY_CONFIG"

var configNames = []string{
	"metaoverlay.yml",
	"metaoverlay.yaml",
	"metaoverlay.toml",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads, validates and defaults the configuration file at path.
func Load(path string) (*Config, error) {
	return LoadWithLogger(path, logrus.New())
}

// LoadWithLogger is Load with a caller supplied logger.
func LoadWithLogger(path string, logger *logrus.Logger) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		// Existing variables win over the file.
		if err := godotenv.Load(envFile); err != nil {
			logger.WithError(err).WithField("path", envFile).Warn("Failed to load .env file, continuing without it")
		} else {
			logger.WithField("path", envFile).Debug("Loaded environment file")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	logger.WithField("path", path).Debug("Loading configuration")
	cfg, err := LoadFromBytes(data, formatOf(path))
	if err != nil {
		if panelErr, ok := errors.As(err); ok {
			return nil, panelErr.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault resolves the config file in this order: the explicit path
// (usually the --config flag), $METAOVERLAY_CONFIG, then the config
// directory. When nothing is found the defaults are returned.
func LoadDefault(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}

	found, err := FindConfigFile(paths.ConfigDir())
	if err != nil {
		return Default(), "", nil
	}
	cfg, err := Load(found)
	return cfg, found, err
}

// LoadFromBytes parses a configuration document. format is "yaml" or
// "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	raw, err := parse([]byte(expandEnvVars(string(data))), format)
	if err != nil {
		return nil, err
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	var cfg Config
	if err := decode(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewSchemaValidator compiles the reflected configuration schema.
func NewSchemaValidator() (*schema.Validator, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	return schema.NewValidator(data)
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(dir string) (string, error) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.ConfigNotFound(dir).WithDetail("searchPath", dir)
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

func parse(data []byte, format string) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}

	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
		if raw == nil {
			raw = map[string]interface{}{}
		}
	default:
		return nil, errors.ConfigInvalid("unknown config format: " + format)
	}
	return raw, nil
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
