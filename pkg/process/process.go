// Package process runs external tools (git, idf.py) as blocking child
// processes and classifies their outcome into espboot's error taxonomy.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
)

// TimeoutExitCode is reported when an invocation is killed by its timeout.
const TimeoutExitCode = 124

// Invocation describes one external command.
type Invocation struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env holds KEY=VALUE pairs appended to the inherited environment.
	Env []string
	// Stdout and Stderr default to the parent's streams when nil.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds the invocation; zero means no bound.
	Timeout time.Duration
}

// String renders the command line for notices and logs.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Name)
	for _, arg := range inv.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Result is the classified outcome of an invocation.
type Result struct {
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool
	Cancelled bool
	// Err is set when the process could not be started or was cancelled.
	Err error
}

// Succeeded reports whether the process ran to completion with status 0.
func (r Result) Succeeded() bool {
	return r.Err == nil && !r.TimedOut && !r.Cancelled && r.ExitCode == 0
}

// NotFound reports whether the executable could not be located.
func (r Result) NotFound() bool {
	return r.Err != nil && (errors.Is(r.Err, exec.ErrNotFound) || errors.Is(r.Err, os.ErrNotExist))
}

//go:generate mockgen -package=processtest -destination=processtest/mock_runner.go github.com/odvcencio/espboot/pkg/process Runner

// Runner executes invocations. Run blocks until the child exits.
type Runner interface {
	Run(ctx context.Context, inv Invocation) Result
}

// ExecRunner runs invocations with os/exec.
type ExecRunner struct{}

// NewExecRunner returns the default Runner.
func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	result := Result{}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Name, inv.Args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = 2 * time.Second

	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdin = nil
	cmd.Stdout = inv.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = inv.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	result.Duration = time.Since(start)

	switch {
	case ctx.Err() != nil:
		result.Cancelled = true
		result.Err = ctx.Err()
		result.ExitCode = -1
		return result
	case runCtx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = TimeoutExitCode
		return result
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Err = err
			result.ExitCode = -1
		}
	}

	return result
}

// Classify maps a Result onto the error taxonomy. It returns nil on success.
func Classify(inv Invocation, res Result) error {
	switch {
	case res.Cancelled:
		cause := res.Err
		if cause == nil {
			cause = context.Canceled
		}
		return espErrors.Wrap(cause, espErrors.ErrCodeCancelled, "interrupted: "+inv.String()).
			WithUserMessage("Interrupted while running " + inv.String())
	case res.TimedOut:
		return espErrors.Newf(espErrors.ErrCodeToolchainTimeout, "%s timed out after %s", inv.String(), inv.Timeout).
			WithContext("command", inv.Name).
			WithUserMessage(fmt.Sprintf("%s did not finish within %s", inv.String(), inv.Timeout))
	case res.Err != nil:
		return espErrors.Wrap(res.Err, espErrors.ErrCodeToolchainInvocation, "start "+inv.String()).
			WithContext("command", inv.Name)
	case res.ExitCode != 0:
		return espErrors.Newf(espErrors.ErrCodeToolchainInvocation, "%s exited with status %d", inv.String(), res.ExitCode).
			WithContext("command", inv.Name).
			WithContext("exit_code", res.ExitCode)
	}
	return nil
}
