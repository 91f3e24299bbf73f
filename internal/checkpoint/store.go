// Package checkpoint persists RunState durably so an interrupted run can be
// resumed. Saves are atomic (write-to-temp-then-rename) and guarded by a
// per-output-root writer lock so two runs can never share a run id or root.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ZhaohnNwafu/Autom6A/internal/runstate"
)

const (
	stateFile = "checkpoint.json"
	lockFile  = "checkpoint.lock"
)

// PersistenceError reports a checkpoint I/O failure. Always fatal: the run
// must not proceed past a stage whose completion cannot be durably recorded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists run state under one output root.
type Store struct {
	dir string
	pid int
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first save or lock acquisition.
func NewStore(dir string) *Store {
	return &Store{dir: dir, pid: os.Getpid()}
}

// Load reads the persisted RunState for runID. A missing checkpoint means a
// fresh run and returns (nil, nil). A checkpoint belonging to a different
// run id is an error: output roots are exclusive to one run.
func (s *Store) Load(runID string) (*runstate.RunState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	var st runstate.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("corrupt checkpoint: %w", err)}
	}
	if runID != "" && st.RunID != runID {
		return nil, fmt.Errorf("output root %s belongs to run %s, not %s", s.dir, st.RunID, runID)
	}
	return &st, nil
}

// Save persists st atomically. It refuses to write when another live
// process holds the writer lock for this output root.
func (s *Store) Save(st *runstate.RunState) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	if owner, live := s.lockOwner(); live && owner != s.pid {
		return &PersistenceError{Op: "save", Err: fmt.Errorf("output root locked by pid %d", owner)}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	tmp := filepath.Join(s.dir, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, stateFile)); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Acquire takes the writer lock for this output root, breaking a stale lock
// left by a dead process. The returned release removes the lock.
func (s *Store) Acquire() (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "lock", Err: err}
	}
	path := filepath.Join(s.dir, lockFile)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", s.pid)
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, &PersistenceError{Op: "lock", Err: err}
		}
		owner, live := s.lockOwner()
		if live {
			return nil, &PersistenceError{Op: "lock",
				Err: fmt.Errorf("output root %s is in use by pid %d", s.dir, owner)}
		}
		// Stale lock from a dead writer; break it and retry once.
		os.Remove(path)
	}
	return nil, &PersistenceError{Op: "lock", Err: fmt.Errorf("could not acquire lock at %s", path)}
}

// lockOwner reads the lock file and reports the owning pid and whether that
// process is still alive.
func (s *Store) lockOwner() (int, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, lockFile))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == s.pid {
		return pid, true
	}
	// Signal 0 probes existence without affecting the target. EPERM still
	// means the process exists, just under another user.
	if err := syscall.Kill(pid, 0); err != nil {
		return pid, errors.Is(err, syscall.EPERM)
	}
	return pid, true
}
