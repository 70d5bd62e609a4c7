package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SeedOutcome is the result of copying a default configuration into place.
type SeedOutcome int

const (
	SeedSkipped SeedOutcome = iota
	SeedCopied
	SeedSourceMissing
	SeedPermissionDenied
	SeedOtherFailure
)

func (o SeedOutcome) String() string {
	switch o {
	case SeedSkipped:
		return "skipped"
	case SeedCopied:
		return "copied"
	case SeedSourceMissing:
		return "source_missing"
	case SeedPermissionDenied:
		return "permission_denied"
	case SeedOtherFailure:
		return "other_failure"
	default:
		return "unknown"
	}
}

// SeedResult records one Seed call.
type SeedResult struct {
	Source  string
	Dest    string
	Outcome SeedOutcome
	Err     error
}

// Seeder copies a default sdkconfig into the workspace. Failures are
// reported, never fatal.
type Seeder struct {
	root   Root
	source string
	notify Notifier
	logger *slog.Logger
}

// NewSeeder returns a Seeder for source; an empty source disables seeding.
// Relative sources resolve against root.
func NewSeeder(root Root, source string, notify Notifier, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	source = strings.TrimSpace(source)
	if source != "" && !filepath.IsAbs(source) {
		source = root.Join(source)
	}
	return &Seeder{
		root:   root,
		source: source,
		notify: notify,
		logger: logger.With(slog.String("component", "seeder")),
	}
}

// Enabled reports whether a source was configured.
func (s *Seeder) Enabled() bool {
	return s != nil && s.source != ""
}

// Seed copies the source over <root>/sdkconfig.
func (s *Seeder) Seed() SeedResult {
	res := SeedResult{Source: s.source, Dest: s.root.Join(ConfigPath)}
	if !s.Enabled() {
		res.Outcome = SeedSkipped
		return res
	}

	err := copyFile(res.Source, res.Dest)
	switch {
	case err == nil:
		res.Outcome = SeedCopied
		s.info("Set default compilation configuration")
	case errors.Is(err, fs.ErrNotExist):
		res.Outcome, res.Err = SeedSourceMissing, err
		s.warn("File not found, please check the file path: %s", s.root.Rel(res.Source))
	case errors.Is(err, fs.ErrPermission):
		res.Outcome, res.Err = SeedPermissionDenied, err
		s.warn("No permission to access file, please check file permissions: %s", s.root.Rel(res.Source))
	default:
		res.Outcome, res.Err = SeedOtherFailure, err
		s.warn("An error occurred: %v", err)
	}

	s.logger.Debug("default config seeded",
		slog.String("source", s.root.Rel(res.Source)),
		slog.String("outcome", res.Outcome.String()),
	)
	return res
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Seeder) info(format string, args ...any) {
	if s.notify != nil {
		s.notify.Info(format, args...)
	}
}

func (s *Seeder) warn(format string, args ...any) {
	if s.notify != nil {
		s.notify.Warn(format, args...)
	}
}
