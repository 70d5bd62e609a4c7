// Package sourcesync initializes and updates the workspace's vendored git
// submodules before the toolchain reads any component manifests.
package sourcesync

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/odvcencio/espboot/pkg/config"
	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/process"
	"github.com/odvcencio/espboot/pkg/workspace"
)

// Step names, in execution order.
const (
	StepInit   = "submodule init"
	StepUpdate = "submodule update"
)

// StepResult records one synchronization step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Report summarizes a Sync call.
type Report struct {
	Backend    string
	Skipped    bool
	SkipReason string
	Steps      []StepResult
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Synchronizer runs submodule init followed by submodule update.
type Synchronizer interface {
	Sync(ctx context.Context) (Report, error)
}

// Options configures a Synchronizer.
type Options struct {
	Root      workspace.Root
	Backend   string
	GitBinary string
	// Strict returns step failures instead of logging them.
	Strict  bool
	Timeout time.Duration
	Runner  process.Runner
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// New returns the Synchronizer for opts.Backend.
func New(opts Options) (Synchronizer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "sourcesync", "backend", opts.Backend)

	switch opts.Backend {
	case config.SyncBackendCLI, "":
		if opts.Runner == nil {
			opts.Runner = process.NewExecRunner()
		}
		if opts.GitBinary == "" {
			opts.GitBinary = config.DefaultGitBinary
		}
		return &cliSync{opts: opts}, nil
	case config.SyncBackendGoGit:
		return &goGitSync{opts: opts}, nil
	default:
		return nil, espErrors.Newf(espErrors.ErrCodeInvalidInput, "unknown sync backend %q", opts.Backend)
	}
}

// Disabled is a Synchronizer that reports the stage as skipped.
type Disabled struct{}

// Sync implements Synchronizer.
func (Disabled) Sync(context.Context) (Report, error) {
	return Report{Skipped: true, SkipReason: "disabled by configuration"}, nil
}

func openRepository(dir string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
}

// handleStep applies the failure policy shared by both backends. Cancellation
// and timeouts always propagate; other failures only in strict mode.
func handleStep(ctx context.Context, opts Options, step StepResult) error {
	if step.Err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return espErrors.Wrap(ctx.Err(), espErrors.ErrCodeCancelled, "interrupted during "+step.Name)
	}
	code := espErrors.GetCode(step.Err)
	if code == espErrors.ErrCodeCancelled || code == espErrors.ErrCodeToolchainTimeout {
		return step.Err
	}
	if opts.Strict {
		if code == espErrors.ErrCodeToolchainInvocation {
			return step.Err
		}
		return espErrors.Wrap(step.Err, espErrors.ErrCodeToolchainInvocation, step.Name+" failed")
	}
	opts.Logger.Warn("submodule step failed, continuing", "step", step.Name, "error", step.Err)
	return nil
}
