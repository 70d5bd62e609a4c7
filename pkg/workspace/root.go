// Package workspace owns the firmware workspace layout: the root directory,
// the generated artifacts espboot resets, and the default config seeding.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/espboot/pkg/paths"
)

// Root is the absolute workspace directory every relative path resolves against.
type Root struct {
	dir string
}

// NewRoot resolves dir to an absolute directory. An empty dir means the
// process working directory.
func NewRoot(dir string) (Root, error) {
	dir = paths.ExpandHome(dir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Root{}, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolve workspace %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Root{}, fmt.Errorf("workspace %s: %w", abs, err)
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("workspace %s is not a directory", abs)
	}
	return Root{dir: abs}, nil
}

// Dir returns the absolute workspace path.
func (r Root) Dir() string {
	return r.dir
}

// Join resolves a slash-separated relative path under the root.
func (r Root) Join(rel string) string {
	return filepath.Join(r.dir, filepath.FromSlash(rel))
}

// Rel returns path relative to the root for display. Paths outside the
// root are returned unchanged.
func (r Root) Rel(path string) string {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
