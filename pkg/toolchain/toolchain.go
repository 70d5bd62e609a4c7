// Package toolchain probes for and drives the ESP-IDF build tool.
package toolchain

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/odvcencio/espboot/pkg/process"
)

// EnvTarget is exported to every invocation to select the chip.
const EnvTarget = "IDF_TARGET"

// Options configures a Toolchain.
type Options struct {
	Dir     string // Workspace root; every invocation runs here
	Target  string
	Timeout time.Duration
	Runner  process.Runner
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Toolchain runs subcommands of a probed build tool.
type Toolchain struct {
	handle  Handle
	dir     string
	target  string
	timeout time.Duration
	runner  process.Runner
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

// New binds a Handle returned by Probe.Check to a workspace.
func New(handle Handle, opts Options) *Toolchain {
	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolchain{
		handle:  handle,
		dir:     opts.Dir,
		target:  opts.Target,
		timeout: opts.Timeout,
		runner:  runner,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		logger:  logger.With("component", "toolchain"),
	}
}

// Handle returns the executable this toolchain invokes.
func (t *Toolchain) Handle() Handle {
	return t.handle
}

// Invocation builds the command for a subcommand without running it.
func (t *Toolchain) Invocation(args ...string) process.Invocation {
	name := t.handle.Path
	if name == "" {
		name = t.handle.Name
	}
	inv := process.Invocation{
		Name:    name,
		Args:    args,
		Dir:     t.dir,
		Stdout:  t.stdout,
		Stderr:  t.stderr,
		Timeout: t.timeout,
	}
	if t.target != "" {
		inv.Env = []string{EnvTarget + "=" + t.target}
	}
	return inv
}

// Run executes one subcommand and blocks until it exits.
func (t *Toolchain) Run(ctx context.Context, args ...string) (process.Invocation, process.Result) {
	inv := t.Invocation(args...)
	t.logger.Debug("invoking toolchain", "command", inv.String(), "target", t.target)
	res := t.runner.Run(ctx, inv)
	t.logger.Debug("toolchain returned", "command", inv.String(), "exit_code", res.ExitCode, "duration", res.Duration)
	return inv, res
}
