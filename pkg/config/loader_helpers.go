package config

import (
	"os"
	"strings"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config. Missing
// files surface as os.IsNotExist errors so callers can skip them.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return espErrors.Wrap(err, espErrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return espErrors.Wrap(err, espErrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Strings replace when non-empty;
// booleans and durations replace only when present in raw.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	mergeString(&base.Target, override.Target)
	mergeString(&base.Board, override.Board)

	mergeString(&base.Dependency.Name, override.Dependency.Name)
	mergeString(&base.Dependency.Version, override.Dependency.Version)

	mergeString(&base.Toolchain.Binary, override.Toolchain.Binary)
	mergeString(&base.Toolchain.Project, override.Toolchain.Project)
	mergeString(&base.Toolchain.DocsURL, override.Toolchain.DocsURL)
	if fieldSet(raw, "toolchain", "timeout") {
		base.Toolchain.Timeout = override.Toolchain.Timeout
	}

	if fieldSet(raw, "sync", "enabled") {
		base.Sync.Enabled = override.Sync.Enabled
	}
	if override.Sync.Backend != "" {
		base.Sync.Backend = strings.ToLower(strings.TrimSpace(override.Sync.Backend))
	}
	mergeString(&base.Sync.GitBinary, override.Sync.GitBinary)

	if fieldSet(raw, "pipeline", "strict") {
		base.Pipeline.Strict = override.Pipeline.Strict
	}
	if fieldSet(raw, "cleanup", "fail_on_error") {
		base.Cleanup.FailOnError = override.Cleanup.FailOnError
	}
	if fieldSet(raw, "defaults", "sdkconfig") {
		base.Defaults.SDKConfig = strings.TrimSpace(override.Defaults.SDKConfig)
	}

	if override.Logging.Level != "" {
		base.Logging.Level = strings.ToLower(strings.TrimSpace(override.Logging.Level))
	}
	if override.Logging.Format != "" {
		base.Logging.Format = strings.ToLower(strings.TrimSpace(override.Logging.Format))
	}
	if fieldSet(raw, "logging", "event_log") {
		base.Logging.EventLog = override.Logging.EventLog
	}
	mergeString(&base.Logging.Dir, override.Logging.Dir)
	if fieldSet(raw, "logging", "no_color") {
		base.Logging.NoColor = override.Logging.NoColor
	}

	mergeString(&base.Telemetry.MetricsFile, override.Telemetry.MetricsFile)
	mergeString(&base.Telemetry.TraceFile, override.Telemetry.TraceFile)
}

func mergeString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
