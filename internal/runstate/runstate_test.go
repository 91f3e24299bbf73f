package runstate

import (
	"testing"
)

var order = []string{"convert-format", "basecall", "align", "realign-signal", "infer-modification"}

func success(stage string, attempt int) StageResult {
	return StageResult{Stage: stage, Attempt: attempt, Validated: true}
}

func failure(stage string, attempt int, kind FailureKind) StageResult {
	return StageResult{Stage: stage, Attempt: attempt, Failure: kind, ExitCode: 1}
}

func TestNewGeneratesRunID(t *testing.T) {
	st := New("", "/out")
	if st.RunID == "" {
		t.Error("expected generated run id")
	}
	if st.Status != StatusPending {
		t.Errorf("fresh run status = %q", st.Status)
	}

	st = New("my-run", "/out")
	if st.RunID != "my-run" {
		t.Errorf("run id = %q", st.RunID)
	}
}

func TestResumeIndexFreshRun(t *testing.T) {
	st := New("r", "/out")
	if got := st.ResumeIndex(order); got != 0 {
		t.Errorf("fresh run resume index = %d, want 0", got)
	}
}

func TestResumeIndexSkipsValidatedStages(t *testing.T) {
	st := New("r", "/out")
	st.Append(success("convert-format", 1))
	st.Append(failure("basecall", 1, FailureProcess))
	st.Append(success("basecall", 2))
	st.Append(success("align", 1))

	if got := st.ResumeIndex(order); got != 3 {
		t.Errorf("resume index = %d, want 3 (realign-signal)", got)
	}
}

func TestResumeIndexLastAttemptAuthoritative(t *testing.T) {
	st := New("r", "/out")
	st.Append(success("convert-format", 1))
	// A later failed attempt supersedes an earlier success.
	st.Append(failure("convert-format", 2, FailureValidation))

	if got := st.ResumeIndex(order); got != 0 {
		t.Errorf("resume index = %d, want 0", got)
	}
}

func TestResumeIndexAllComplete(t *testing.T) {
	st := New("r", "/out")
	for _, name := range order {
		st.Append(success(name, 1))
	}
	if got := st.ResumeIndex(order); got != len(order) {
		t.Errorf("resume index = %d, want %d", got, len(order))
	}
}

func TestAttempts(t *testing.T) {
	st := New("r", "/out")
	st.Append(failure("basecall", 1, FailureProcess))
	st.Append(failure("basecall", 2, FailureValidation))
	st.Append(success("basecall", 3))
	st.Append(success("align", 1))

	if got := st.Attempts("basecall"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if got := st.Attempts("convert-format"); got != 0 {
		t.Errorf("attempts = %d, want 0", got)
	}
}

func TestLastResult(t *testing.T) {
	st := New("r", "/out")
	if st.LastResult("basecall") != nil {
		t.Error("expected nil for unattempted stage")
	}
	st.Append(failure("basecall", 1, FailureProcess))
	st.Append(success("basecall", 2))

	last := st.LastResult("basecall")
	if last == nil || last.Attempt != 2 || !last.Validated {
		t.Errorf("last result = %+v", last)
	}
}
