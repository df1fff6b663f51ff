package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up when --config is not given.
const DefaultConfigFile = "themebuilder.yaml"

// Config represents the themebuilder configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Themes    ThemesConfig    `yaml:"themes"`
	Output    OutputConfig    `yaml:"output"`
	Build     BuildConfig     `yaml:"build"`
	Settings  SettingsConfig  `yaml:"settings"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorkspaceConfig locates the front-end workspace the pipeline operates on.
type WorkspaceConfig struct {
	Root        string `yaml:"root"`
	AngularJSON string `yaml:"angular_json"` // relative to Root
}

// ThemesConfig describes the themes collection.
type ThemesConfig struct {
	Dir       string `yaml:"dir"`       // relative to Root
	Principal string `yaml:"principal"` // theme whose build every tenant reuses
}

// OutputConfig describes the build output layout.
type OutputConfig struct {
	DistDir          string `yaml:"dist_dir"`          // relative to Root
	StatsFile        string `yaml:"stats_file"`        // manifest written by the principal build
	TenantStylesheet string `yaml:"tenant_stylesheet"` // compiled CSS name inside a tenant build
}

// BuildConfig describes how the external build tool is invoked.
type BuildConfig struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`       // placed before --project
	ExtraArgs   []string          `yaml:"extra_args"` // placed after --output-path
	StatsFlag   string            `yaml:"stats_flag"`
	Silent      bool              `yaml:"silent"`
	Env         map[string]string `yaml:"env,omitempty"`
	EnvFile     string            `yaml:"env_file,omitempty"`
	GracePeriod time.Duration     `yaml:"grace_period"`
}

// SettingsConfig controls deployment settings merging.
type SettingsConfig struct {
	RequireInfra bool `yaml:"require_infra"`
}

// HistoryConfig enables the SQLite run journal when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig enables the Prometheus textfile when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// WatchConfig tunes the rebuild-on-change loop.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File additionally writes logs to a size-rotated file.
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from configPath. A missing file at the default
// location yields the defaults; a missing explicitly named file is an error.
func Load(configPath string, explicit bool) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	// Relative workspace roots are resolved against the config file location.
	if !filepath.IsAbs(cfg.Workspace.Root) {
		cfg.Workspace.Root = filepath.Join(filepath.Dir(configPath), cfg.Workspace.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if cfg.Workspace.AngularJSON == "" {
		cfg.Workspace.AngularJSON = "angular.json"
	}
	if cfg.Themes.Dir == "" {
		cfg.Themes.Dir = "themes"
	}
	if cfg.Themes.Principal == "" {
		cfg.Themes.Principal = "forgerock"
	}
	if cfg.Output.DistDir == "" {
		cfg.Output.DistDir = "dist"
	}
	if cfg.Output.StatsFile == "" {
		cfg.Output.StatsFile = "stats.json"
	}
	if cfg.Output.TenantStylesheet == "" {
		cfg.Output.TenantStylesheet = "styles.css"
	}
	if cfg.Build.Command == "" {
		cfg.Build.Command = "ng"
		if cfg.Build.Args == nil {
			cfg.Build.Args = []string{"build"}
		}
		if cfg.Build.ExtraArgs == nil {
			cfg.Build.ExtraArgs = []string{"--extra-webpack-config", "webpack.extra.js"}
		}
		cfg.Build.Silent = true
	}
	if cfg.Build.StatsFlag == "" {
		cfg.Build.StatsFlag = "--statsJson"
	}
	if cfg.Build.GracePeriod <= 0 {
		cfg.Build.GracePeriod = 10 * time.Second
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
	cfg.Logging.Level = string(NormalizeLogLevel(cfg.Logging.Level))
	cfg.Logging.Format = string(NormalizeLogFormat(cfg.Logging.Format))
}

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if filepath.IsAbs(c.Themes.Dir) || filepath.IsAbs(c.Output.DistDir) {
		return fmt.Errorf("themes.dir and output.dist_dir must be relative to workspace.root")
	}
	if filepath.Base(c.Themes.Principal) != c.Themes.Principal || c.Themes.Principal == "." {
		return fmt.Errorf("themes.principal must be a plain directory name, got %q", c.Themes.Principal)
	}
	if filepath.Base(c.Output.StatsFile) != c.Output.StatsFile {
		return fmt.Errorf("output.stats_file must be a file name, got %q", c.Output.StatsFile)
	}
	return nil
}

// AngularJSONPath returns the absolute-or-root-relative path of the global build configuration.
func (c *Config) AngularJSONPath() string {
	if filepath.IsAbs(c.Workspace.AngularJSON) {
		return c.Workspace.AngularJSON
	}
	return filepath.Join(c.Workspace.Root, c.Workspace.AngularJSON)
}

// ThemesPath returns the themes directory path.
func (c *Config) ThemesPath() string {
	return filepath.Join(c.Workspace.Root, c.Themes.Dir)
}

// DistPath returns the build output directory path.
func (c *Config) DistPath() string {
	return filepath.Join(c.Workspace.Root, c.Output.DistDir)
}

// Init writes a configuration file with the default values.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MetricsTextfilePath returns the metrics textfile path; relative paths are
// resolved against the workspace root.
func (c *Config) MetricsTextfilePath() string {
	if c.Metrics.Textfile == "" || filepath.IsAbs(c.Metrics.Textfile) {
		return c.Metrics.Textfile
	}
	return filepath.Join(c.Workspace.Root, c.Metrics.Textfile)
}

// HistoryPath returns the run history database path; relative paths are
// resolved against the workspace root.
func (c *Config) HistoryPath() string {
	if c.History.Path == "" || c.History.Path == ":memory:" || filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(c.Workspace.Root, c.History.Path)
}
