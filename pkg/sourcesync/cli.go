package sourcesync

import (
	"context"

	"github.com/odvcencio/espboot/pkg/config"
	"github.com/odvcencio/espboot/pkg/process"
)

// cliSync shells out to git. Both steps always run; git itself reports a
// workspace that is not a repository.
type cliSync struct {
	opts Options
}

func (s *cliSync) Sync(ctx context.Context) (Report, error) {
	report := Report{Backend: config.SyncBackendCLI}
	dir := s.opts.Root.Dir()

	for _, step := range []struct {
		name string
		args []string
	}{
		{StepInit, []string{"submodule", "init"}},
		{StepUpdate, []string{"submodule", "update"}},
	} {
		inv := process.Invocation{
			Name:    s.opts.GitBinary,
			Args:    step.args,
			Dir:     dir,
			Stdout:  s.opts.Stdout,
			Stderr:  s.opts.Stderr,
			Timeout: s.opts.Timeout,
		}
		res := s.opts.Runner.Run(ctx, inv)
		result := StepResult{Name: step.name, Duration: res.Duration, Err: process.Classify(inv, res)}
		report.Steps = append(report.Steps, result)
		s.opts.Logger.Debug("git step finished", "step", step.name, "exit_code", res.ExitCode, "duration", res.Duration)

		if err := handleStep(ctx, s.opts, result); err != nil {
			return report, err
		}
	}
	return report, nil
}
