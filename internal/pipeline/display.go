package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Display handles terminal progress output for the pipeline.
type Display struct {
	w       io.Writer
	verbose bool
}

// NewDisplay creates a display that writes to stdout.
func NewDisplay(verbose bool) *Display {
	return &Display{w: os.Stdout, verbose: verbose}
}

// Header prints the run header.
func (d *Display) Header(runID string) {
	fmt.Fprintf(d.w, "\n🧬 Autom6A — run %s\n", runID)
	fmt.Fprintln(d.w, strings.Repeat("─", 72))
}

// StageSkipped prints a line for a stage satisfied by a previous run.
func (d *Display) StageSkipped(name string) {
	fmt.Fprintf(d.w, "⏭  %-20s already completed, skipping\n", name)
}

// StageStart prints a stage-in-progress line.
func (d *Display) StageStart(name, context string, attempt, maxAttempts int) {
	if attempt > 1 {
		fmt.Fprintf(d.w, "⏳ %-20s [%s] attempt %d/%d\n", name, context, attempt, maxAttempts)
		return
	}
	fmt.Fprintf(d.w, "⏳ %-20s [%s]\n", name, context)
}

// StageDone prints a completed stage line.
func (d *Display) StageDone(name string, duration time.Duration) {
	fmt.Fprintf(d.w, "✅ %-20s %.1fs\n", name, duration.Seconds())
}

// StageRetry prints a line announcing the next attempt after a failure.
func (d *Display) StageRetry(name string, attempt int, backoff time.Duration) {
	fmt.Fprintf(d.w, "🔁 %-20s attempt %d failed, retrying in %s\n", name, attempt, backoff)
}

// StageFailed prints a failed stage line.
func (d *Display) StageFailed(name string, err error) {
	fmt.Fprintf(d.w, "❌ %-20s %s\n", name, err.Error())
}

// Summary prints the final run summary.
func (d *Display) Summary(status string, total time.Duration) {
	fmt.Fprintln(d.w, strings.Repeat("─", 72))
	fmt.Fprintf(d.w, "✅ %s  %.0fs\n\n", status, total.Seconds())
}

// Failed prints a failure summary.
func (d *Display) Failed(err error) {
	fmt.Fprintln(d.w, strings.Repeat("─", 72))
	fmt.Fprintf(d.w, "❌ %s\n\n", err.Error())
}
