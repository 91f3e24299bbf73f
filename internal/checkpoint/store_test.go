package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZhaohnNwafu/Autom6A/internal/runstate"
)

func TestLoadMissingReturnsNone(t *testing.T) {
	s := NewStore(t.TempDir())
	st, err := s.Load("whatever")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil for missing checkpoint, got %+v", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	st := runstate.New("run-1", dir)
	st.SetStatus(runstate.StatusRunning)
	st.Append(runstate.StageResult{Stage: "convert-format", Attempt: 1, Validated: true})
	if err := s.Save(st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.RunID != "run-1" || got.Status != runstate.StatusRunning {
		t.Errorf("loaded %+v", got)
	}
	if len(got.Stages) != 1 || got.Stages[0].Stage != "convert-format" {
		t.Errorf("stage history lost: %+v", got.Stages)
	}
}

func TestLoadRejectsForeignRunID(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Save(runstate.New("run-a", dir)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("run-b"); err == nil {
		t.Error("expected error loading a different run id from the same root")
	}
}

func TestInterruptedSaveLeavesPreviousState(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	st := runstate.New("run-1", dir)
	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}

	// Simulate a writer dying mid-save: a partial temp file next to the
	// checkpoint. Load must still return the previous valid state.
	tmp := filepath.Join(dir, stateFile+".tmp")
	if err := os.WriteFile(tmp, []byte(`{"run_id": "run-1", "stat`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load() after interrupted save: %v", err)
	}
	if got.RunID != "run-1" {
		t.Errorf("loaded %+v", got)
	}
}

func TestLoadCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFile), []byte("{half"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir)
	_, err := s.Load("run-1")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("expected *PersistenceError, got %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	release, err := s.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, lockFile)); statErr != nil {
		t.Errorf("lock file not created: %v", statErr)
	}
	release()
	if _, statErr := os.Stat(filepath.Join(dir, lockFile)); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("lock file not removed on release")
	}
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	dir := t.TempDir()
	// A pid that cannot exist on this host.
	if err := os.WriteFile(filepath.Join(dir, lockFile), []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	release, err := s.Acquire()
	if err != nil {
		t.Fatalf("stale lock should be broken: %v", err)
	}
	release()
}

func TestSaveRefusesForeignLiveLock(t *testing.T) {
	dir := t.TempDir()
	// pid 1 is always alive.
	if err := os.WriteFile(filepath.Join(dir, lockFile), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	err := s.Save(runstate.New("run-1", dir))
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("expected *PersistenceError for foreign live lock, got %v", err)
	}
}

func TestAcquireRefusesForeignLiveLock(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, lockFile), []byte(fmt.Sprintf("%d\n", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir)
	if _, err := s.Acquire(); err == nil {
		t.Error("expected Acquire to refuse a live foreign lock")
	}
}

func TestSaveHoldsOwnLock(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	release, err := s.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if err := s.Save(runstate.New("run-1", dir)); err != nil {
		t.Errorf("saving under own lock should succeed: %v", err)
	}
}
