package orchestrator

import (
	"fmt"
	"time"

	"github.com/odvcencio/espboot/pkg/pipeline"
	"github.com/odvcencio/espboot/pkg/sourcesync"
	"github.com/odvcencio/espboot/pkg/toolchain"
	"github.com/odvcencio/espboot/pkg/workspace"
)

// StageTiming is the wall time of one stage.
type StageTiming struct {
	State    State
	Duration time.Duration
}

// Report describes a finished run.
type Report struct {
	RunID       string
	State       State
	Transitions []State
	// Aborted is the stage that was running when the run aborted.
	Aborted  State
	Err      error
	Started  time.Time
	Finished time.Time
	Stages   []StageTiming

	Cleanup   workspace.Report
	Sync      sourcesync.Report
	Toolchain toolchain.Handle
	Pipeline  pipeline.Report
}

// PipelineFailures returns the steps that failed without aborting the run.
func (r *Report) PipelineFailures() []pipeline.StepOutcome {
	return r.Pipeline.Failures()
}

// Ran reports whether the run entered state.
func (r *Report) Ran(state State) bool {
	for _, s := range r.Transitions {
		if s == state {
			return true
		}
	}
	return false
}

// Summary renders one line per stage.
func (r *Report) Summary() []string {
	lines := make([]string, 0, len(r.Stages)+1)
	for _, st := range r.Stages {
		lines = append(lines, fmt.Sprintf("%-13s %s", st.State, st.Duration.Round(time.Millisecond)))
	}
	total := r.Finished.Sub(r.Started).Round(time.Millisecond)
	if r.State == StateAborted {
		lines = append(lines, fmt.Sprintf("aborted in %s after %s", r.Aborted, total))
	} else {
		lines = append(lines, fmt.Sprintf("%s after %s (%d removed, %d step failures)",
			r.State, total, r.Cleanup.Removed(), len(r.PipelineFailures())))
	}
	return lines
}
