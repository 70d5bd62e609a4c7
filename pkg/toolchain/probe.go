package toolchain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/process"
)

// Handle is an executable resolved from PATH during the current run.
type Handle struct {
	Name string
	Path string
}

// ProbeOptions configures a Probe.
type ProbeOptions struct {
	Dir     string // Workspace root the probe runs in
	Binary  string
	Project string // Project that ships the binary, named in diagnostics
	DocsURL string
	Timeout time.Duration
	Runner  process.Runner
	Logger  *slog.Logger
}

// Probe verifies that the build toolchain can be executed.
type Probe struct {
	dir      string
	binary   string
	project  string
	docsURL  string
	timeout  time.Duration
	runner   process.Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// NewProbe constructs a probe for opts.Binary.
func NewProbe(opts ProbeOptions) *Probe {
	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		dir:      opts.Dir,
		binary:   opts.Binary,
		project:  opts.Project,
		docsURL:  opts.DocsURL,
		timeout:  opts.Timeout,
		runner:   runner,
		lookPath: exec.LookPath,
		logger:   logger.With("component", "probe"),
	}
}

// Check resolves the binary and runs it once with no arguments, discarding
// stdout. Any failure to start or a non-zero status is reported as
// ToolchainUnavailable. Nothing is cached between calls.
func (p *Probe) Check(ctx context.Context) (Handle, error) {
	path, err := p.lookPath(p.binary)
	if err != nil {
		p.logger.Debug("toolchain not on PATH", "binary", p.binary, "error", err)
		return Handle{}, p.unavailable(err)
	}

	inv := process.Invocation{
		Name:    path,
		Dir:     p.dir,
		Stdout:  io.Discard,
		Timeout: p.timeout,
	}
	res := p.runner.Run(ctx, inv)

	switch {
	case res.Cancelled, res.TimedOut:
		return Handle{}, process.Classify(inv, res)
	case !res.Succeeded():
		p.logger.Debug("toolchain probe failed", "path", path, "exit_code", res.ExitCode, "error", res.Err)
		return Handle{}, p.unavailable(process.Classify(inv, res))
	}

	p.logger.Debug("toolchain available", "path", path, "duration", res.Duration)
	return Handle{Name: p.binary, Path: path}, nil
}

func (p *Probe) unavailable(cause error) *espErrors.Error {
	e := espErrors.Newf(espErrors.ErrCodeToolchainUnavailable, "%s cannot be executed", p.binary).
		WithContext("binary", p.binary).
		WithUserMessage(UnavailableMessage(p.binary, p.docsURL)).
		WithRemediation(
			fmt.Sprintf("Install %s following %s", p.project, p.docsURL),
			fmt.Sprintf("Source the %s export script in this shell before running espboot", p.project),
		)
	e.Underlying = cause
	return e
}

// UnavailableMessage is the single line printed when the toolchain is missing.
func UnavailableMessage(binary, docsURL string) string {
	return fmt.Sprintf("Unable to execute %s, please see here to learn how to use and install %s", binary, docsURL)
}
