package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/ZhaohnNwafu/Autom6A/internal/runstate"
)

// reportDiagLimit bounds how much diagnostic tail the report reproduces per
// failing stage. The full tail stays in the checkpoint.
const reportDiagLimit = 2048

// WriteReport writes a human-readable summary of a run: overall status,
// every stage attempt, and the diagnostic tail of the last failure.
func WriteReport(w io.Writer, st *runstate.RunState) {
	fmt.Fprintf(w, "run:    %s\n", st.RunID)
	fmt.Fprintf(w, "status: %s\n", st.Status)
	fmt.Fprintf(w, "output: %s\n", st.OutputRoot)
	if st.Error != "" {
		fmt.Fprintf(w, "error:  %s\n", st.Error)
	}
	fmt.Fprintln(w)

	if len(st.Stages) == 0 {
		fmt.Fprintln(w, "no stage attempts recorded")
		return
	}

	fmt.Fprintf(w, "%-20s %-8s %-12s %-6s %s\n", "stage", "attempt", "result", "exit", "duration")
	for _, sr := range st.Stages {
		result := "ok"
		switch {
		case sr.Validated:
			result = "ok"
		case sr.Failure != runstate.FailureNone:
			result = string(sr.Failure)
		}
		fmt.Fprintf(w, "%-20s %-8d %-12s %-6d %.1fs\n",
			sr.Stage, sr.Attempt, result, sr.ExitCode,
			sr.FinishedAt.Sub(sr.StartedAt).Seconds())
	}

	if last := lastFailure(st); last != nil && last.Diagnostics != "" {
		fmt.Fprintf(w, "\nlast diagnostics (%s, attempt %d):\n", last.Stage, last.Attempt)
		diag := last.Diagnostics
		if len(diag) > reportDiagLimit {
			diag = "[...]" + diag[len(diag)-reportDiagLimit:]
		}
		for _, line := range strings.Split(strings.TrimSpace(diag), "\n") {
			fmt.Fprintf(w, "  │ %s\n", line)
		}
	}
}

func lastFailure(st *runstate.RunState) *runstate.StageResult {
	for i := len(st.Stages) - 1; i >= 0; i-- {
		if st.Stages[i].Failure != runstate.FailureNone {
			return &st.Stages[i]
		}
	}
	return nil
}
