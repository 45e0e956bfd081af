// Package process provides the single external-process invocation
// contract every pipeline stage uses: an allow-listed command run with
// an explicit argument vector, bounded output capture, and escalating
// cancellation on timeout or context cancellation.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/texforge/texforge/pkg/logger"
)

const (
	// MaxCapturedBytes bounds each of stdout/stderr per invocation.
	MaxCapturedBytes = 1 << 20 // 1 MiB

	// KillGracePeriod is how long a terminated process group is given to
	// exit after SIGTERM before SIGKILL is sent.
	KillGracePeriod = 5 * time.Second
)

// Result is the outcome of a single Process Runner invocation. A Result
// is always returned on any path that doesn't hit a precondition
// violation (missing executable, disallowed command) — the Process
// Runner never fails a stage silently.
type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Duration  time.Duration
	Cancelled bool
	TimedOut  bool
}

// Runner executes allow-listed external commands on behalf of a
// pipeline stage.
type Runner struct {
	logger *logger.Logger
}

// NewRunner creates a Runner that logs under the "process-runner"
// component tag.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{logger: log.WithField("component", "process-runner")}
}

// Run executes argv[0] with the remaining elements as arguments — never
// through a shell. argv[0] must appear in allowList or Run returns an
// error without starting a process (a precondition violation, not a
// Result). stdin, if non-nil, is written to the child's standard input.
// The call observes both ctx cancellation and the timeout, whichever
// comes first, escalating SIGTERM on the process group followed by
// SIGKILL after KillGracePeriod if the process has not exited.
func (r *Runner) Run(ctx context.Context, argv []string, stdin []byte, cwd string, env []string, timeout time.Duration, allowList map[string]bool) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("process: empty argument vector")
	}
	if !allowList[argv[0]] {
		return nil, fmt.Errorf("process: command %q is not allow-listed for this stage", argv[0])
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("process: command %q not found: %w", argv[0], err)
	}

	log := r.logger.WithFields("command", argv[0], "args", len(argv)-1)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	if env != nil {
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(stdin) > 0 {
		cmd.Stdin = newByteReader(stdin)
	}

	stdout := NewRingBuffer(MaxCapturedBytes)
	stderr := NewRingBuffer(MaxCapturedBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: failed to start %q: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	result := &Result{}

	select {
	case err := <-done:
		result.ExitCode = exitCodeOf(err)
	case <-timeoutCh:
		log.Warn("process timed out, escalating termination", "timeout", timeout)
		result.TimedOut = true
		result.ExitCode = r.escalateKill(cmd, done)
	case <-ctx.Done():
		log.Warn("process cancelled, escalating termination")
		result.Cancelled = true
		result.ExitCode = r.escalateKill(cmd, done)
	}

	result.Duration = time.Since(start)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	return result, nil
}

// escalateKill sends SIGTERM to the process group, waits up to
// KillGracePeriod for it to exit, then sends SIGKILL. Returns the exit
// code observed, or -1 if the process could not be confirmed dead.
func (r *Runner) escalateKill(cmd *exec.Cmd, done <-chan error) int {
	pgid := cmd.Process.Pid
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case err := <-done:
		return exitCodeOf(err)
	case <-time.After(KillGracePeriod):
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		select {
		case err := <-done:
			return exitCodeOf(err)
		case <-time.After(KillGracePeriod):
			return -1
		}
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}
