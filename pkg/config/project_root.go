package config

import (
	"os"
	"path/filepath"

	"github.com/odvcencio/espboot/pkg/paths"
)

// EnvWorkspace overrides the workspace directory when no flag is given.
const EnvWorkspace = "ESPBOOT_WORKSPACE"

// ResolveWorkspaceRoot returns the absolute workspace root espboot should operate in.
// Preference order:
//  1. Explicit directory (the -C flag)
//  2. ESPBOOT_WORKSPACE
//  3. Current working directory
func ResolveWorkspaceRoot(explicit string) string {
	root := paths.ExpandHome(explicit)
	if root == "" {
		root = paths.ExpandHome(os.Getenv(EnvWorkspace))
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			return abs
		}
		return root
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
