// Package pipeline drives the three ordered toolchain invocations that turn a
// clean workspace into a built firmware image.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/manifest"
	"github.com/odvcencio/espboot/pkg/process"
	"github.com/odvcencio/espboot/pkg/toolchain"
	"github.com/odvcencio/espboot/pkg/workspace"
)

// DependencySpec is the library registered before reconfiguring.
type DependencySpec struct {
	Name    string
	Version string
}

// String renders the registrar argument, e.g. lvgl/lvgl^8.3.11.
func (d DependencySpec) String() string {
	return d.Name + d.Version
}

// Step identifies one toolchain invocation.
type Step int

const (
	StepAddDependency Step = iota
	StepReconfigure
	StepBuild
)

// Steps lists every step in the order it runs.
var Steps = []Step{StepAddDependency, StepReconfigure, StepBuild}

func (s Step) String() string {
	switch s {
	case StepAddDependency:
		return "add-dependency"
	case StepReconfigure:
		return "reconfigure"
	case StepBuild:
		return "build"
	default:
		return "unknown"
	}
}

func (s Step) args(dep DependencySpec) []string {
	if s == StepAddDependency {
		return []string{s.String(), dep.String()}
	}
	return []string{s.String()}
}

// StepOutcome is the classified result of one step.
type StepOutcome struct {
	Step       Step
	Invocation process.Invocation
	Result     process.Result
	Err        error
}

// Failed reports whether the step did not succeed.
func (o StepOutcome) Failed() bool {
	return o.Err != nil
}

// Report summarizes a pipeline run.
type Report struct {
	Seed     workspace.SeedResult
	Steps    []StepOutcome
	Manifest ManifestCheck
}

// Failures returns the outcomes of failed steps.
func (r Report) Failures() []StepOutcome {
	var failed []StepOutcome
	for _, s := range r.Steps {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// ManifestCheck records whether the registered dependency was found.
type ManifestCheck struct {
	Checked  bool
	Declared bool
	Err      error
}

// Observer receives one callback per finished step.
type Observer interface {
	ObserveStep(step string, d time.Duration, ok bool)
}

// Options configures a Pipeline.
type Options struct {
	Root       workspace.Root
	Toolchain  *toolchain.Toolchain
	Dependency DependencySpec
	// Strict stops at the first failing step. When false every step runs.
	Strict   bool
	Seeder   *workspace.Seeder
	Tracer   trace.Tracer
	Observer Observer
	Logger   *slog.Logger
}

// Pipeline runs add-dependency, reconfigure and build in order.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:   opts,
		logger: logger.With("component", "pipeline", "strict", opts.Strict),
	}
}

// Run executes the steps. Step N+1 never starts before step N returns.
// Cancellation and timeouts always stop the run; other failures stop it
// only in strict mode.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	if p.opts.Seeder.Enabled() {
		report.Seed = p.opts.Seeder.Seed()
	}

	for _, step := range Steps {
		if err := ctx.Err(); err != nil {
			return report, espErrors.Wrap(err, espErrors.ErrCodeCancelled, "interrupted before "+step.String())
		}

		outcome := p.runStep(ctx, step)
		report.Steps = append(report.Steps, outcome)

		if outcome.Failed() {
			if fatal(outcome.Err) || p.opts.Strict {
				return report, outcome.Err
			}
			p.logger.Warn("toolchain step failed, continuing",
				"step", step.String(),
				"exit_code", outcome.Result.ExitCode,
				"error", outcome.Err,
			)
		}

		if step == StepAddDependency && !outcome.Failed() {
			report.Manifest = p.checkManifest()
			if p.opts.Strict && !report.Manifest.Declared {
				return report, p.manifestFailure(report.Manifest)
			}
		}
	}

	return report, nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step) StepOutcome {
	ctx, span := p.opts.Tracer.Start(ctx, "pipeline."+step.String(),
		trace.WithAttributes(
			attribute.String("step", step.String()),
			attribute.String("toolchain", p.opts.Toolchain.Handle().Path),
		))
	defer span.End()

	inv, res := p.opts.Toolchain.Run(ctx, step.args(p.opts.Dependency)...)
	outcome := StepOutcome{
		Step:       step,
		Invocation: inv,
		Result:     res,
		Err:        process.Classify(inv, res),
	}

	span.SetAttributes(
		attribute.String("command", inv.String()),
		attribute.Int("exit_code", res.ExitCode),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	if p.opts.Observer != nil {
		p.opts.Observer.ObserveStep(step.String(), res.Duration, outcome.Err == nil)
	}
	return outcome
}

func (p *Pipeline) checkManifest() ManifestCheck {
	path := p.opts.Root.Join(workspace.ManifestPath)
	check := ManifestCheck{Checked: true}

	m, err := manifest.Load(path)
	if err != nil {
		check.Err = err
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("component manifest was not created", "path", workspace.ManifestPath)
		} else {
			p.logger.Warn("component manifest unreadable", "path", workspace.ManifestPath, "error", err)
		}
		return check
	}

	check.Declared = m.HasDependency(p.opts.Dependency.Name)
	if check.Declared {
		dep, _ := m.Lookup(p.opts.Dependency.Name)
		p.logger.Debug("dependency declared", "name", dep.Name, "version", dep.Version)
	} else {
		p.logger.Warn("dependency missing from component manifest",
			"name", p.opts.Dependency.Name, "path", workspace.ManifestPath)
	}
	return check
}

func (p *Pipeline) manifestFailure(check ManifestCheck) error {
	e := espErrors.Newf(espErrors.ErrCodeToolchainInvocation,
		"%s does not declare %s", workspace.ManifestPath, p.opts.Dependency.Name).
		WithContext("step", StepAddDependency.String()).
		WithRemediation("Run the add-dependency step manually and inspect its output")
	e.Underlying = check.Err
	return e
}

func fatal(err error) bool {
	switch espErrors.GetCode(err) {
	case espErrors.ErrCodeCancelled, espErrors.ErrCodeToolchainTimeout:
		return true
	}
	return false
}
