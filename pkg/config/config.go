package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultTarget            = "esp32"
	DefaultBoard             = "ESP32 TDisplay"
	DefaultDependencyName    = "lvgl/lvgl"
	DefaultDependencyVersion = "^8.3.11"
	DefaultToolchainBinary   = "idf.py"
	DefaultToolchainProject  = "ESP-IDF"
	DefaultToolchainDocsURL  = "https://github.com/espressif/esp-idf"
	DefaultGitBinary         = "git"
	DefaultSyncBackend       = SyncBackendCLI
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Submodule sync backends
const (
	SyncBackendCLI   = "cli"
	SyncBackendGoGit = "gogit"
)

// ProjectConfigDir is the per-workspace configuration directory.
const ProjectConfigDir = ".espboot"

// Config represents the complete espboot configuration
type Config struct {
	Target     string           `yaml:"target"`
	Board      string           `yaml:"board"`
	Dependency DependencyConfig `yaml:"dependency"`
	Toolchain  ToolchainConfig  `yaml:"toolchain"`
	Sync       SyncConfig       `yaml:"sync"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DependencyConfig names the component registered before reconfiguring.
type DependencyConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"` // Version range passed verbatim, e.g. ^8.3.11
}

// ToolchainConfig locates the vendor build tool.
type ToolchainConfig struct {
	Binary  string        `yaml:"binary"`
	Project string        `yaml:"project"`  // Shown in the unavailable diagnostic
	DocsURL string        `yaml:"docs_url"` // Installation docs pointer
	Timeout time.Duration `yaml:"timeout"`  // Per invocation; 0 disables
}

// SyncConfig controls submodule synchronization.
type SyncConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"` // cli or gogit
	GitBinary string `yaml:"git_binary"`
}

// PipelineConfig controls how toolchain failures propagate.
type PipelineConfig struct {
	// Strict stops at the first failing invocation instead of continuing.
	Strict bool `yaml:"strict"`
}

// CleanupConfig controls artifact removal failures.
type CleanupConfig struct {
	FailOnError bool `yaml:"fail_on_error"`
}

// DefaultsConfig names files seeded into the workspace.
type DefaultsConfig struct {
	SDKConfig string `yaml:"sdkconfig"`
}

// LoggingConfig controls diagnostics and the run event log.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"` // text or json
	EventLog bool   `yaml:"event_log"`
	Dir      string `yaml:"dir"`
	NoColor  bool   `yaml:"no_color"`
}

// TelemetryConfig enables file-based metrics and trace export.
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file"` // Prometheus textfile format
	TraceFile   string `yaml:"trace_file"`   // OpenTelemetry JSON spans
}

// DefaultConfig returns the built-in configuration for the TDisplay board.
func DefaultConfig() *Config {
	return &Config{
		Target: DefaultTarget,
		Board:  DefaultBoard,
		Dependency: DependencyConfig{
			Name:    DefaultDependencyName,
			Version: DefaultDependencyVersion,
		},
		Toolchain: ToolchainConfig{
			Binary:  DefaultToolchainBinary,
			Project: DefaultToolchainProject,
			DocsURL: DefaultToolchainDocsURL,
		},
		Sync: SyncConfig{
			Enabled:   true,
			Backend:   DefaultSyncBackend,
			GitBinary: DefaultGitBinary,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load resolves configuration for a workspace: defaults, then
// ~/.espboot/config.yaml, then <root>/.espboot/config.yaml, then env.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ProjectConfigDir, "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, espErrors.Wrap(err, espErrors.ErrCodeConfigLoad, "loading user config").
				WithContext("path", userConfigPath)
		}
	}

	projectConfigPath := filepath.Join(root, ProjectConfigDir, "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, espErrors.Wrap(err, espErrors.ErrCodeConfigLoad, "loading project config").
			WithContext("path", projectConfigPath)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, espErrors.Wrap(err, espErrors.ErrCodeConfigLoad, "loading config").
			WithContext("path", path)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_TARGET")); v != "" {
		cfg.Target = v
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_TOOLCHAIN")); v != "" {
		cfg.Toolchain.Binary = v
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return espErrors.Wrap(err, espErrors.ErrCodeConfigInvalid, "invalid ESPBOOT_TIMEOUT").
				WithContext("value", v).
				WithUserMessage(fmt.Sprintf("invalid ESPBOOT_TIMEOUT %q (expected a duration such as 10m)", v))
		}
		cfg.Toolchain.Timeout = d
	}
	if val, ok := envBool("ESPBOOT_STRICT"); ok {
		cfg.Pipeline.Strict = val
	}
	if val, ok := envBool("ESPBOOT_SYNC_ENABLED"); ok {
		cfg.Sync.Enabled = val
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_SYNC_BACKEND")); v != "" {
		cfg.Sync.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_LOG_FORMAT")); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_LOG_DIR")); v != "" {
		cfg.Logging.Dir = v
		cfg.Logging.EventLog = true
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Logging.NoColor = true
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_METRICS_FILE")); v != "" {
		cfg.Telemetry.MetricsFile = v
	}
	if v := strings.TrimSpace(os.Getenv("ESPBOOT_TRACE_FILE")); v != "" {
		cfg.Telemetry.TraceFile = v
	}
	return nil
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

var (
	targetPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	// Ranges are appended verbatim to the dependency name, so they must open
	// with an operator.
	versionPattern = regexp.MustCompile(`^(\*|(\^|~=|~|==|>=|<=|!=|>|<)[0-9A-Za-z.+*-]+(,\s*(\^|~=|~|==|>=|<=|!=|>|<)[0-9A-Za-z.+*-]+)*)$`)
)

// Validate checks the configuration for values the toolchain would reject.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return espErrors.Newf(espErrors.ErrCodeConfigInvalid, format, args...)
	}

	if !targetPattern.MatchString(c.Target) {
		return invalid("invalid target: %q (expected an ESP-IDF target such as esp32 or esp32s3)", c.Target)
	}
	if strings.TrimSpace(c.Dependency.Name) == "" {
		return invalid("dependency.name is required")
	}
	if !versionPattern.MatchString(c.Dependency.Version) {
		return invalid("invalid dependency.version: %q (expected a range such as ^8.3.11, ~1.2, ==1.0.0 or *)", c.Dependency.Version)
	}
	if strings.TrimSpace(c.Toolchain.Binary) == "" {
		return invalid("toolchain.binary is required")
	}
	if c.Toolchain.Timeout < 0 {
		return invalid("toolchain.timeout must not be negative: %s", c.Toolchain.Timeout)
	}

	switch c.Sync.Backend {
	case SyncBackendCLI, SyncBackendGoGit:
	default:
		return invalid("invalid sync backend: %s (valid: cli, gogit)", c.Sync.Backend)
	}
	if c.Sync.Backend == SyncBackendCLI && strings.TrimSpace(c.Sync.GitBinary) == "" {
		return invalid("sync.git_binary is required for the cli backend")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// DependencySpec renders the registrar argument, e.g. lvgl/lvgl^8.3.11.
func (c *Config) DependencySpec() string {
	return c.Dependency.Name + c.Dependency.Version
}

// Summary returns a stable one-line description for debug logs.
func (c *Config) Summary() string {
	return fmt.Sprintf("target=%s dependency=%s toolchain=%s sync=%s strict=%t",
		c.Target, c.DependencySpec(), c.Toolchain.Binary, c.Sync.Backend, c.Pipeline.Strict)
}
