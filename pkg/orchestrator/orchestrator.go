// Package orchestrator runs the bootstrap stages strictly in sequence:
// clean the workspace, synchronize submodules, probe the toolchain, then
// register the dependency, reconfigure and build.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/logging"
	"github.com/odvcencio/espboot/pkg/pipeline"
	"github.com/odvcencio/espboot/pkg/sourcesync"
	"github.com/odvcencio/espboot/pkg/toolchain"
	"github.com/odvcencio/espboot/pkg/workspace"
)

// Cleaner removes stale artifacts.
type Cleaner interface {
	Clean(ctx context.Context) (workspace.Report, error)
}

// Probe checks the toolchain.
type Probe interface {
	Check(ctx context.Context) (toolchain.Handle, error)
}

// Pipeline runs the toolchain steps.
type Pipeline interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// PipelineFactory binds the pipeline to the handle the probe just returned.
type PipelineFactory func(handle toolchain.Handle) Pipeline

// Notifier prints user-facing notices.
type Notifier interface {
	Banner(title string)
	Warn(format string, args ...any)
}

// Recorder receives run metrics.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	ObserveArtifact(role, outcome string)
	ObserveRun(state string, finished time.Time)
}

// Options wires the stages of a run.
type Options struct {
	Cleaner      Cleaner
	Synchronizer sourcesync.Synchronizer
	Probe        Probe
	NewPipeline  PipelineFactory

	// Board is announced before the pipeline starts.
	Board    string
	RunID    string
	Notifier Notifier
	EventLog *logging.EventLog
	Recorder Recorder
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// Orchestrator drives a single run.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an Orchestrator. A nil Synchronizer disables the sync stage.
func New(opts Options) *Orchestrator {
	if opts.Synchronizer == nil {
		opts.Synchronizer = sourcesync.Disabled{}
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		opts:   opts,
		logger: logger.With("component", "orchestrator"),
		now:    time.Now,
	}
}

// Run executes every stage once. The returned error is the cause of an
// abort; a run that reaches Done returns nil even when best-effort steps
// failed (see Report.PipelineFailures).
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: o.opts.RunID, State: StateStart, Started: o.now()}
	ctx, span := o.opts.Tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(attribute.String("run_id", o.opts.RunID)))
	defer span.End()

	o.event(logging.LevelInfo, logging.CategoryRun, "run_started", "", nil)

	err := o.run(ctx, report)

	report.Finished = o.now()
	if err != nil {
		report.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Debug("run aborted", "state", report.Aborted.String(), "error", err)
		o.event(logging.LevelError, logging.CategoryRun, "run_aborted", string(espErrors.GetCode(err)), map[string]any{
			"stage": report.Aborted.String(),
			"error": err.Error(),
		})
	} else {
		o.event(logging.LevelInfo, logging.CategoryRun, "run_finished", "", map[string]any{
			"pipeline_failures": len(report.PipelineFailures()),
		})
	}
	span.SetAttributes(attribute.String("state", report.State.String()))
	if o.opts.Recorder != nil {
		o.opts.Recorder.ObserveRun(report.State.String(), report.Finished)
	}
	for _, line := range report.Summary() {
		o.logger.Debug(line)
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, report *Report) error {
	// Cleaning
	err := o.stage(ctx, report, StateCleaning, func(ctx context.Context) error {
		res, err := o.opts.Cleaner.Clean(ctx)
		report.Cleanup = res
		for _, r := range res.Results {
			if o.opts.Recorder != nil {
				o.opts.Recorder.ObserveArtifact(string(r.Artifact.Role), r.Outcome.String())
			}
			if r.Failed() {
				o.event(logging.LevelWarn, logging.CategoryCleanup, "artifact_failed", r.Outcome.String(), map[string]any{
					"path":  r.Artifact.RelPath,
					"error": fmt.Sprint(r.Err),
				})
			} else if r.Outcome == workspace.OutcomeRemoved {
				o.event(logging.LevelInfo, logging.CategoryCleanup, "artifact_removed", "", map[string]any{"path": r.Artifact.RelPath})
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	// Synchronizing
	err = o.stage(ctx, report, StateSynchronizing, func(ctx context.Context) error {
		res, err := o.opts.Synchronizer.Sync(ctx)
		report.Sync = res
		details := map[string]any{"backend": res.Backend, "skipped": res.Skipped}
		if res.Skipped {
			details["reason"] = res.SkipReason
		}
		for _, step := range res.Steps {
			if step.Err != nil {
				details[step.Name] = step.Err.Error()
			}
		}
		o.event(logging.LevelInfo, logging.CategorySync, "sync_finished", "", details)
		return err
	})
	if err != nil {
		return err
	}

	// Probing
	var handle toolchain.Handle
	err = o.stage(ctx, report, StateProbing, func(ctx context.Context) error {
		h, err := o.opts.Probe.Check(ctx)
		if err != nil {
			o.event(logging.LevelError, logging.CategoryProbe, "toolchain_unavailable", "", map[string]any{"error": err.Error()})
			return err
		}
		handle = h
		report.Toolchain = h
		o.event(logging.LevelInfo, logging.CategoryProbe, "toolchain_available", "", map[string]any{"path": h.Path})
		return nil
	})
	if err != nil {
		return err
	}

	// Pipelining
	if o.opts.Notifier != nil && o.opts.Board != "" {
		o.opts.Notifier.Banner("Fixed to " + o.opts.Board)
	}
	err = o.stage(ctx, report, StatePipelining, func(ctx context.Context) error {
		res, err := o.opts.NewPipeline(handle).Run(ctx)
		report.Pipeline = res
		for _, step := range res.Steps {
			level, typ := logging.LevelInfo, "step_succeeded"
			details := map[string]any{"step": step.Step.String(), "exit_code": step.Result.ExitCode, "duration_ms": step.Result.Duration.Milliseconds()}
			if step.Failed() {
				level, typ = logging.LevelWarn, "step_failed"
				details["error"] = step.Err.Error()
			}
			o.event(level, logging.CategoryPipeline, typ, step.Invocation.String(), details)
		}
		return err
	})
	if err != nil {
		return err
	}

	if failed := report.PipelineFailures(); len(failed) > 0 && o.opts.Notifier != nil {
		o.opts.Notifier.Warn("%d of %d toolchain steps failed; first failure: %s",
			len(failed), len(report.Pipeline.Steps), failed[0].Invocation.String())
	}

	o.transition(report, StateDone)
	return nil
}

// stage moves into state, runs fn under a span and aborts the run when fn
// fails. The context is checked first so a cancelled run starts nothing new.
func (o *Orchestrator) stage(ctx context.Context, report *Report, state State, fn func(context.Context) error) error {
	o.transition(report, state)

	if err := ctx.Err(); err != nil {
		o.abort(report, state)
		return espErrors.Wrap(err, espErrors.ErrCodeCancelled, "interrupted before "+state.String())
	}

	ctx, span := o.opts.Tracer.Start(ctx, "stage."+state.String())
	start := o.now()
	err := fn(ctx)
	elapsed := o.now().Sub(start)
	report.Stages = append(report.Stages, StageTiming{State: state, Duration: elapsed})
	if o.opts.Recorder != nil {
		o.opts.Recorder.ObserveStage(state.String(), elapsed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err != nil {
		o.abort(report, state)
		return err
	}
	return nil
}

func (o *Orchestrator) transition(report *Report, to State) {
	if !CanTransition(report.State, to) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", report.State, to))
	}
	o.logger.Debug("state transition", "from", report.State.String(), "to", to.String())
	report.Transitions = append(report.Transitions, to)
	report.State = to
}

func (o *Orchestrator) abort(report *Report, from State) {
	report.Aborted = from
	o.transition(report, StateAborted)
}

func (o *Orchestrator) event(level logging.Level, category logging.Category, eventType, message string, details map[string]any) {
	if o.opts.EventLog == nil {
		return
	}
	var err error
	switch level {
	case logging.LevelError:
		err = o.opts.EventLog.Error(category, eventType, message, details)
	case logging.LevelWarn:
		err = o.opts.EventLog.Warn(category, eventType, message, details)
	default:
		err = o.opts.EventLog.Info(category, eventType, message, details)
	}
	if err != nil {
		o.logger.Warn("event log write failed", "error", err)
	}
}
