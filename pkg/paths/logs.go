// Package paths resolves user-supplied directories and where espboot writes
// its run logs.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvLogDir = "ESPBOOT_LOG_DIR"

// LogsBaseDir returns configured, then ESPBOOT_LOG_DIR, then .espboot/logs.
func LogsBaseDir(configured string) string {
	if dir := strings.TrimSpace(configured); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	return filepath.Join(".espboot", "logs")
}

// ExpandHome trims path and replaces a leading ~ with the user's home
// directory. Other paths are returned trimmed.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

// LogsBaseDirForWorkspace anchors a relative log directory at the workspace root.
func LogsBaseDirForWorkspace(root, configured string) string {
	base := LogsBaseDir(configured)
	if filepath.IsAbs(base) || strings.TrimSpace(root) == "" {
		return base
	}
	return filepath.Join(root, base)
}

// RunLogPath is the event log file for one run.
func RunLogPath(root, configured, runID string) string {
	return filepath.Join(LogsBaseDirForWorkspace(root, configured), strings.TrimSpace(runID)+".jsonl")
}
