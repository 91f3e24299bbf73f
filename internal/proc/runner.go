// Package proc executes one external command under a resolved runtime
// context, capturing bounded output tails and enforcing a wall-clock timeout.
package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ZhaohnNwafu/Autom6A/internal/runtime"
)

// Outcome is the structured result of one external command. A non-zero exit
// code is data, not an error: retry-versus-abort is the orchestrator's
// policy, not the runner's.
type Outcome struct {
	ExitCode   int
	StdoutTail string
	StderrTail string
	Duration   time.Duration
	TimedOut   bool
	Canceled   bool
}

// Runner executes external commands. TailBytes bounds how much of each
// output stream is retained for diagnostics.
type Runner struct {
	TailBytes int
}

// killGrace is how long a child process group gets between SIGTERM and
// SIGKILL after a timeout or cancellation.
const killGrace = 5 * time.Second

// Run starts the command under the plan's environment and waits for it to
// exit, the timeout to fire, or ctx to be canceled. The child is started in
// its own process group; on timeout or cancellation the whole group is
// terminated and the child is always reaped before Run returns.
//
// stdoutPath, when non-empty, redirects the child's standard output into
// that file (for tools that write their result to stdout); diagnostics then
// come from stderr only.
//
// An error is returned only when the command cannot be started at all
// (missing executable, unopenable redirect target) — a configuration
// problem, distinct from the command running and failing.
func (r *Runner) Run(ctx context.Context, plan runtime.ExecutionPlan, exe string, args []string, stdoutPath string, timeout time.Duration) (Outcome, error) {
	start := time.Now()

	path, err := lookupExecutable(exe, plan)
	if err != nil {
		return Outcome{}, err
	}

	cmd := exec.Command(path, args...)
	cmd.Env = plan.Env
	cmd.Dir = plan.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutTail := newTailBuffer(r.TailBytes)
	stderrTail := newTailBuffer(r.TailBytes)
	cmd.Stderr = stderrTail

	var redirect *os.File
	if stdoutPath != "" {
		redirect, err = os.Create(stdoutPath)
		if err != nil {
			return Outcome{}, fmt.Errorf("opening stdout redirect %s: %w", stdoutPath, err)
		}
		defer redirect.Close()
		cmd.Stdout = redirect
	} else {
		cmd.Stdout = stdoutTail
	}

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("starting %s: %w", exe, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	out := Outcome{}
	select {
	case err = <-done:
	case <-timer.C:
		out.TimedOut = true
		err = terminate(cmd, done)
	case <-ctx.Done():
		out.Canceled = true
		err = terminate(cmd, done)
	}

	out.Duration = time.Since(start)
	out.StdoutTail = stdoutTail.String()
	out.StderrTail = stderrTail.String()
	out.ExitCode = exitCode(cmd, err)
	return out, nil
}

// terminate stops the child's whole process group: SIGTERM first, SIGKILL
// if it does not exit within the grace period. Blocks until the child is
// reaped and returns its Wait error.
func terminate(cmd *exec.Cmd, done <-chan error) error {
	if cmd.Process == nil {
		return <-done
	}
	pgid := cmd.Process.Pid
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case err := <-done:
		return err
	case <-time.After(killGrace):
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return <-done
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// lookupExecutable resolves exe against the plan's PATH so context path
// directories take effect even though the parent's PATH differs.
func lookupExecutable(exe string, plan runtime.ExecutionPlan) (string, error) {
	if strings.ContainsRune(exe, os.PathSeparator) {
		if err := checkExecutable(exe); err != nil {
			return "", fmt.Errorf("executable %s: %w", exe, err)
		}
		return exe, nil
	}
	for _, dir := range strings.Split(planPath(plan), string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, exe)
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("executable %q: %w", exe, exec.ErrNotFound)
}

func planPath(plan runtime.ExecutionPlan) string {
	for _, kv := range plan.Env {
		if strings.HasPrefix(kv, "PATH=") {
			return kv[len("PATH="):]
		}
	}
	return os.Getenv("PATH")
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("not executable")
	}
	return nil
}
