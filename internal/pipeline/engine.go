// Package pipeline drives the five-stage m6A workflow: it sequences stages,
// resolves their runtime contexts, runs their external commands, validates
// declared outputs, and checkpoints progress after every state change.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZhaohnNwafu/Autom6A/internal/checkpoint"
	"github.com/ZhaohnNwafu/Autom6A/internal/config"
	vlog "github.com/ZhaohnNwafu/Autom6A/internal/log"
	"github.com/ZhaohnNwafu/Autom6A/internal/proc"
	"github.com/ZhaohnNwafu/Autom6A/internal/runstate"
	"github.com/ZhaohnNwafu/Autom6A/internal/runtime"
	"github.com/ZhaohnNwafu/Autom6A/internal/stage"
	"github.com/ZhaohnNwafu/Autom6A/internal/validate"
)

// ConfigError marks a fatal configuration defect: unknown or conflicting
// runtime context, missing executable, malformed stage table. Never retried.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// StageFailedError reports a stage that exhausted its retry budget.
type StageFailedError struct {
	Stage       string
	Attempts    int
	Kind        runstate.FailureKind
	Diagnostics string
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %q failed after %d attempt(s) (%s)", e.Stage, e.Attempts, e.Kind)
}

// CanceledError reports a run interrupted by an external cancellation
// signal. The run is cleanly resumable.
type CanceledError struct {
	Stage string
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("run canceled during stage %q", e.Stage)
}

// Engine orchestrates one pipeline run.
type Engine struct {
	Config   *config.Config
	Stages   []stage.Descriptor
	Resolver *runtime.Resolver
	Runner   *proc.Runner
	Store    *checkpoint.Store
	Display  *Display

	// State is the run being driven; populated by Execute.
	State *runstate.RunState
}

// Execute runs (or resumes) the pipeline. It loads any existing checkpoint
// for the configured run id, skips stages whose last result is a validated
// success, and drives the rest in order.
func (e *Engine) Execute(ctx context.Context) error {
	start := time.Now()

	st, err := e.Store.Load(e.Config.RunID)
	if err != nil {
		var pe *checkpoint.PersistenceError
		if errors.As(err, &pe) {
			return err
		}
		return &ConfigError{Err: err}
	}
	if st == nil {
		st = runstate.New(e.Config.RunID, e.Config.OutputRoot)
		vlog.Info("starting fresh run", "run_id", st.RunID, "output_root", st.OutputRoot)
	} else {
		vlog.Info("resuming run", "run_id", st.RunID, "completed_stages", len(completedStages(st, e.Stages)))
	}
	e.State = st

	e.Display.Header(st.RunID)

	resume := st.ResumeIndex(stageNames(e.Stages))
	for i := 0; i < resume; i++ {
		e.Display.StageSkipped(e.Stages[i].Name)
	}

	st.SetStatus(runstate.StatusRunning)
	if err := e.Store.Save(st); err != nil {
		return err
	}

	for i := resume; i < len(e.Stages); i++ {
		desc := e.Stages[i]

		select {
		case <-ctx.Done():
			return e.finish(st, &CanceledError{Stage: desc.Name})
		default:
		}

		if err := e.runStage(ctx, desc); err != nil {
			return e.finish(st, err)
		}
	}

	st.SetStatus(runstate.StatusSucceeded)
	if err := e.Store.Save(st); err != nil {
		return err
	}
	e.Display.Summary(string(st.Status), time.Since(start))
	return nil
}

// finish sets the terminal status implied by err, persists it, and passes
// err through. A persistence failure is never masked by a later save.
func (e *Engine) finish(st *runstate.RunState, err error) error {
	var pe *checkpoint.PersistenceError
	if errors.As(err, &pe) {
		return err
	}

	switch {
	case errors.As(err, new(*CanceledError)):
		st.SetStatus(runstate.StatusPartial)
	case errors.As(err, new(*ConfigError)):
		if len(completedStages(st, e.Stages)) > 0 {
			st.SetStatus(runstate.StatusPartial)
		} else {
			st.SetStatus(runstate.StatusFailed)
		}
	default:
		st.SetStatus(runstate.StatusFailed)
	}
	st.Error = err.Error()

	if saveErr := e.Store.Save(st); saveErr != nil {
		vlog.Error("failed to persist final run state", "err", saveErr)
	}
	e.Display.Failed(err)
	return err
}

// runStage drives one stage through its retry budget.
func (e *Engine) runStage(ctx context.Context, desc stage.Descriptor) error {
	plan, err := e.Resolver.Resolve(desc.Context)
	if err != nil {
		return e.recordConfigFailure(desc, err)
	}

	maxAttempts := e.Config.MaxAttempts
	backoff := e.Config.RetryBackoffDuration()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e.Display.StageStart(desc.Name, desc.Context, attempt, maxAttempts)

		sr, fatal := e.attemptStage(ctx, desc, plan)
		e.State.Append(sr)
		if err := e.Store.Save(e.State); err != nil {
			return err
		}
		if fatal != nil {
			e.Display.StageFailed(desc.Name, fatal)
			return fatal
		}

		switch sr.Failure {
		case runstate.FailureNone:
			e.Display.StageDone(desc.Name, sr.FinishedAt.Sub(sr.StartedAt))
			return nil

		case runstate.FailureCanceled:
			e.Display.StageFailed(desc.Name, errors.New("canceled"))
			return &CanceledError{Stage: desc.Name}

		case runstate.FailureValidation:
			// Zero exit with missing or malformed output: a silent tool
			// failure, logged apart from plain process failures.
			vlog.Warn("stage exited 0 but output validation failed",
				"stage", desc.Name, "attempt", sr.Attempt, "detail", firstLine(sr.Diagnostics))

		default:
			vlog.Warn("stage process failed",
				"stage", desc.Name, "attempt", sr.Attempt,
				"exit_code", sr.ExitCode, "timed_out", sr.TimedOut)
		}

		if attempt == maxAttempts {
			return &StageFailedError{
				Stage:       desc.Name,
				Attempts:    e.State.Attempts(desc.Name),
				Kind:        sr.Failure,
				Diagnostics: sr.Diagnostics,
			}
		}

		e.Display.StageRetry(desc.Name, attempt, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return &CanceledError{Stage: desc.Name}
		}
	}
	return nil
}

// attemptStage runs the stage's commands once and validates the outputs.
// The returned StageResult always describes the attempt; a non-nil fatal
// error means the run must stop regardless of the retry budget.
func (e *Engine) attemptStage(ctx context.Context, desc stage.Descriptor, plan runtime.ExecutionPlan) (runstate.StageResult, error) {
	sr := runstate.StageResult{
		Stage:     desc.Name,
		Attempt:   e.State.Attempts(desc.Name) + 1,
		StartedAt: time.Now().UTC(),
	}

	restore, err := e.Resolver.Activate(desc.Context)
	if err != nil {
		sr.FinishedAt = time.Now().UTC()
		sr.Failure = runstate.FailureConfig
		sr.Diagnostics = err.Error()
		return sr, &ConfigError{Err: err}
	}
	defer restore()

	deadline := time.Now().Add(e.Config.StageTimeoutDuration())

	var last proc.Outcome
	for _, cmd := range desc.Commands {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			last.TimedOut = true
			break
		}

		vlog.Debug("exec", "stage", desc.Name, "cmd", cmd.Exe, "args", strings.Join(cmd.Args, " "))
		out, runErr := e.Runner.Run(ctx, plan, cmd.Exe, cmd.Args, cmd.Stdout, remaining)
		if runErr != nil {
			// The command could not even start: missing executable or
			// unopenable redirect — a configuration defect, not a tool failure.
			sr.FinishedAt = time.Now().UTC()
			sr.Failure = runstate.FailureConfig
			sr.Diagnostics = runErr.Error()
			return sr, &ConfigError{Err: runErr}
		}
		last = out
		if out.Canceled || out.TimedOut || out.ExitCode != 0 {
			break
		}
	}

	sr.FinishedAt = time.Now().UTC()
	sr.ExitCode = last.ExitCode
	sr.TimedOut = last.TimedOut
	sr.Canceled = last.Canceled
	sr.Diagnostics = combineTails(last)

	switch {
	case last.Canceled:
		sr.Failure = runstate.FailureCanceled
	case last.TimedOut || last.ExitCode != 0:
		sr.Failure = runstate.FailureProcess
	default:
		if outcome := validate.Stage(desc); !outcome.OK() {
			sr.Failure = runstate.FailureValidation
			sr.Diagnostics = strings.TrimSpace(outcome.String() + "\n" + sr.Diagnostics)
		} else {
			sr.Validated = true
		}
	}
	return sr, nil
}

func (e *Engine) recordConfigFailure(desc stage.Descriptor, cause error) error {
	sr := runstate.StageResult{
		Stage:       desc.Name,
		Attempt:     e.State.Attempts(desc.Name) + 1,
		StartedAt:   time.Now().UTC(),
		FinishedAt:  time.Now().UTC(),
		Failure:     runstate.FailureConfig,
		Diagnostics: cause.Error(),
	}
	e.State.Append(sr)
	if err := e.Store.Save(e.State); err != nil {
		return err
	}
	e.Display.StageFailed(desc.Name, cause)
	return &ConfigError{Err: cause}
}

func stageNames(stages []stage.Descriptor) []string {
	names := make([]string, len(stages))
	for i, d := range stages {
		names[i] = d.Name
	}
	return names
}

func completedStages(st *runstate.RunState, stages []stage.Descriptor) []string {
	var done []string
	for _, d := range stages {
		if st.Completed(d.Name) {
			done = append(done, d.Name)
		}
	}
	return done
}

func combineTails(out proc.Outcome) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(out.StderrTail); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(out.StdoutTail); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
