// Package runstate holds the durable model of a pipeline run: overall
// status plus the append-only per-stage attempt history.
package runstate

import (
	"time"

	"github.com/google/uuid"
)

// Status is the overall run status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partially-completed"
)

// FailureKind classifies why a stage attempt failed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureProcess    FailureKind = "process"       // non-zero exit or timeout
	FailureValidation FailureKind = "validation"    // zero exit, bad declared output
	FailureConfig     FailureKind = "configuration" // unknown/conflicting context, missing executable
	FailureCanceled   FailureKind = "canceled"
)

// StageResult records one attempt of one stage. A stage accumulates one
// result per attempt; only the last is authoritative for resume decisions.
type StageResult struct {
	Stage       string      `json:"stage"`
	Attempt     int         `json:"attempt"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	ExitCode    int         `json:"exit_code"`
	TimedOut    bool        `json:"timed_out,omitempty"`
	Canceled    bool        `json:"canceled,omitempty"`
	Validated   bool        `json:"validated"`
	Failure     FailureKind `json:"failure,omitempty"`
	Diagnostics string      `json:"diagnostics,omitempty"`
}

// RunState is the complete durable state of one run. Single writer: the
// orchestrator mutates it and persists after every mutation.
type RunState struct {
	RunID      string        `json:"run_id"`
	OutputRoot string        `json:"output_root"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Stages     []StageResult `json:"stages"`
	Error      string        `json:"error,omitempty"`
}

// New creates a fresh RunState. An empty runID gets a generated one.
func New(runID, outputRoot string) *RunState {
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now().UTC()
	return &RunState{
		RunID:      runID,
		OutputRoot: outputRoot,
		Status:     StatusPending,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Append adds a stage attempt to the history.
func (s *RunState) Append(sr StageResult) {
	s.Stages = append(s.Stages, sr)
	s.UpdatedAt = time.Now().UTC()
}

// SetStatus updates the overall status.
func (s *RunState) SetStatus(st Status) {
	s.Status = st
	s.UpdatedAt = time.Now().UTC()
}

// LastResult returns the most recent attempt for the stage, or nil.
func (s *RunState) LastResult(stage string) *StageResult {
	for i := len(s.Stages) - 1; i >= 0; i-- {
		if s.Stages[i].Stage == stage {
			return &s.Stages[i]
		}
	}
	return nil
}

// Completed reports whether the stage's last attempt was a validated success.
func (s *RunState) Completed(stage string) bool {
	last := s.LastResult(stage)
	return last != nil && last.Validated && last.Failure == FailureNone
}

// Attempts returns how many attempts the stage has accumulated.
func (s *RunState) Attempts(stage string) int {
	n := 0
	for _, sr := range s.Stages {
		if sr.Stage == stage {
			n++
		}
	}
	return n
}

// ResumeIndex returns the index into order of the first stage whose last
// result is not a validated success — the resume point of the run.
func (s *RunState) ResumeIndex(order []string) int {
	for i, name := range order {
		if !s.Completed(name) {
			return i
		}
	}
	return len(order)
}
