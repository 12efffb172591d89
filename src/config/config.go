package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default config file names, tried in order when no path is given.
var defaultConfigFiles = []string{".edgefreight.yml", ".edgefreight.yaml", ".edgefreight.toml"}

// Config is the top-level edgefreight configuration.
type Config struct {
	// Workspace is the job workspace root. Relative manifest and content
	// paths are resolved against it, and the .env descriptor is written here.
	Workspace string `yaml:"workspace" toml:"workspace"`

	Azure       AzureConfig       `yaml:"azure" toml:"azure"`
	Credentials CredentialsConfig `yaml:"credentials" toml:"credentials"`
	Tool        ToolConfig        `yaml:"tool" toml:"tool"`
	Build       BuildConfig       `yaml:"build" toml:"build"`
	Push        PushConfig        `yaml:"push" toml:"push"`
	Deploy      DeployConfig      `yaml:"deploy" toml:"deploy"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
	Metrics     MetricsConfig     `yaml:"metrics" toml:"metrics"`
}

// Load reads configuration from a YAML or TOML file.
// If path is empty, it tries the default files.
// Returns sensible defaults if no file exists.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return defaults(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// decode picks the format from the file extension. Anything that is not
// .toml is treated as YAML.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Overlay merges values set on the command line over the file config.
// Only non-empty fields of override win; everything else keeps the file value.
func Overlay[T any](base T, override T) (T, error) {
	merged := override
	if err := mergo.Merge(&merged, base); err != nil {
		return base, fmt.Errorf("merging flags over config: %w", err)
	}
	return merged, nil
}

// ResolvePath makes p absolute relative to the workspace.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkspaceDir(), p)
}

// WorkspaceDir returns the absolute workspace directory.
func (c *Config) WorkspaceDir() string {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return ws
	}
	return abs
}

func defaults() *Config {
	return &Config{
		Workspace:   ".",
		Credentials: DefaultCredentialsConfig(),
		Tool:        DefaultToolConfig(),
		Build:       DefaultBuildConfig(),
		Push:        DefaultPushConfig(),
		Deploy:      DefaultDeployConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return defaults()
}
