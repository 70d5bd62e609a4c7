package workspace

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
)

// Role names what a tracked artifact is for.
type Role string

const (
	RoleManifest Role = "manifest"
	RoleConfig   Role = "config"
	RoleBuildDir Role = "build_dir"
)

// Kind distinguishes single files from directory trees.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Artifact is a generated workspace entry reset before every run.
type Artifact struct {
	Role    Role
	RelPath string
	Kind    Kind
}

// Well-known ESP-IDF artifact locations.
const (
	ManifestPath = "main/idf_component.yml"
	ConfigPath   = "sdkconfig"
	BuildDirPath = "build"
)

// DefaultArtifacts returns the three tracked artifacts.
func DefaultArtifacts() []Artifact {
	return []Artifact{
		{Role: RoleManifest, RelPath: ManifestPath, Kind: KindFile},
		{Role: RoleConfig, RelPath: ConfigPath, Kind: KindFile},
		{Role: RoleBuildDir, RelPath: BuildDirPath, Kind: KindDir},
	}
}

// Outcome is the closed set of per-artifact cleanup results.
type Outcome int

const (
	OutcomeAlreadyAbsent Outcome = iota
	OutcomeRemoved
	OutcomePermissionDenied
	OutcomeOtherFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyAbsent:
		return "already_absent"
	case OutcomeRemoved:
		return "removed"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeOtherFailure:
		return "other_failure"
	default:
		return "unknown"
	}
}

// Result records what happened to one artifact.
type Result struct {
	Artifact Artifact
	Path     string
	Outcome  Outcome
	Err      error
}

// Failed reports whether the removal did not succeed.
func (r Result) Failed() bool {
	return r.Outcome == OutcomePermissionDenied || r.Outcome == OutcomeOtherFailure
}

// Report is the outcome of one Clean pass.
type Report struct {
	Results []Result
}

// Failures returns the failed results in visit order.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Removed counts artifacts actually deleted.
func (r Report) Removed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeRemoved {
			n++
		}
	}
	return n
}

// Notifier receives human-readable notices.
type Notifier interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type fileSystem interface {
	Lstat(name string) (fs.FileInfo, error)
	Remove(name string) error
	RemoveAll(path string) error
}

type osFS struct{}

func (osFS) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (osFS) Remove(name string) error {
	return os.Remove(name)
}

func (osFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// CleanerOptions configures a Cleaner.
type CleanerOptions struct {
	Artifacts []Artifact
	// FailOnError aborts Clean at the first removal failure.
	FailOnError bool
	Notifier    Notifier
	Logger      *slog.Logger
}

// Cleaner removes stale generated artifacts. It is idempotent: a second
// pass with no intervening writes reports every artifact as already absent.
type Cleaner struct {
	root        Root
	artifacts   []Artifact
	failOnError bool
	notify      Notifier
	logger      *slog.Logger
	fs          fileSystem
}

// NewCleaner builds a Cleaner for root.
func NewCleaner(root Root, opts CleanerOptions) *Cleaner {
	artifacts := opts.Artifacts
	if len(artifacts) == 0 {
		artifacts = DefaultArtifacts()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		root:        root,
		artifacts:   append([]Artifact{}, artifacts...),
		failOnError: opts.FailOnError,
		notify:      opts.Notifier,
		logger:      logger.With(slog.String("component", "cleaner")),
		fs:          osFS{},
	}
}

// Clean visits every artifact. Removal failures are always recorded in the
// report; the returned error is non-nil only when FailOnError is set or the
// context is done.
func (c *Cleaner) Clean(ctx context.Context) (Report, error) {
	var report Report
	for _, artifact := range c.artifacts {
		if err := ctx.Err(); err != nil {
			return report, espErrors.Wrap(err, espErrors.ErrCodeCancelled, "cleanup interrupted")
		}

		res := c.cleanOne(artifact)
		report.Results = append(report.Results, res)

		rel := c.root.Rel(res.Path)
		switch res.Outcome {
		case OutcomeRemoved:
			c.logger.Debug("artifact removed", slog.String("path", rel), slog.String("role", string(artifact.Role)))
			c.info("Delete temporary files: %s", rel)
		case OutcomeAlreadyAbsent:
			c.logger.Debug("artifact absent", slog.String("path", rel))
		default:
			c.logger.Warn("artifact removal failed",
				slog.String("path", rel),
				slog.String("outcome", res.Outcome.String()),
				slog.Any("error", res.Err),
			)
			c.warn("Unable to remove %s: %s", rel, describeFailure(res))
			if c.failOnError {
				return report, FileOperationFailure(res)
			}
		}
	}
	return report, nil
}

func (c *Cleaner) cleanOne(artifact Artifact) Result {
	path := c.root.Join(artifact.RelPath)
	res := Result{Artifact: artifact, Path: path}

	info, err := c.fs.Lstat(path)
	if err != nil {
		res.Outcome, res.Err = classify(err)
		return res
	}

	if artifact.Kind == KindDir && info.IsDir() {
		err = c.fs.RemoveAll(path)
	} else {
		err = c.fs.Remove(path)
	}
	if err != nil {
		res.Outcome, res.Err = classify(err)
		return res
	}

	res.Outcome = OutcomeRemoved
	return res
}

func classify(err error) (Outcome, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return OutcomeAlreadyAbsent, nil
	case errors.Is(err, fs.ErrPermission):
		return OutcomePermissionDenied, err
	default:
		return OutcomeOtherFailure, err
	}
}

func describeFailure(res Result) string {
	if res.Outcome == OutcomePermissionDenied {
		return "permission denied"
	}
	if res.Err != nil {
		return res.Err.Error()
	}
	return res.Outcome.String()
}

// FileOperationFailure converts a failed Result into a coded error.
func FileOperationFailure(res Result) *espErrors.Error {
	err := espErrors.New(espErrors.ErrCodeFileOperation, "remove "+res.Path)
	err.Underlying = res.Err
	return err.
		WithContext("role", string(res.Artifact.Role)).
		WithContext("outcome", res.Outcome.String()).
		WithUserMessage("Unable to remove " + res.Path + ": " + describeFailure(res)).
		WithRemediation("Check the file permissions or close programs holding the path open.")
}

func (c *Cleaner) info(format string, args ...any) {
	if c.notify != nil {
		c.notify.Info(format, args...)
	}
}

func (c *Cleaner) warn(format string, args ...any) {
	if c.notify != nil {
		c.notify.Warn(format, args...)
	}
}
