// Package isolate runs one conversion in a disposable child process with a
// hard wall-clock deadline.
//
// A single malformed record can hang indefinitely inside the format
// libraries, and a goroutine cannot be killed, so the only reliable bound
// on worst-case latency is process-level isolation: spawn a child dedicated
// to exactly one task, wait up to the deadline, and kill it if it has not
// returned. The child's lifecycle is Spawned then either Completed or
// Killed; both are terminal for the current run. A killed task may leave a
// partial output file on disk, which stays untrusted until the next run's
// resume pass re-validates it.
package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"wavebatch/internal/logging"
	"wavebatch/internal/task"
)

// reapDelay bounds how long Wait lingers after the kill signal.
const reapDelay = 5 * time.Second

// Executor abstracts the child process for testability.
type Executor interface {
	Run(ctx context.Context, stdin []byte) (stdout []byte, err error)
}

// Supervisor executes task specs in disposable children.
type Supervisor struct {
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *Supervisor) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a supervisor enforcing the given per-task deadline. The
// default executor re-invokes the running binary as `run-task`.
func New(timeout time.Duration, opts ...Option) (*Supervisor, error) {
	supervisor := &Supervisor{timeout: timeout, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(supervisor)
	}
	if supervisor.exec == nil {
		executor, err := newSelfExecutor()
		if err != nil {
			return nil, err
		}
		supervisor.exec = executor
	}
	return supervisor, nil
}

// Run executes one task in a child process and reports its tagged result.
// Failures never surface as errors; every outcome is a task.Result.
func (s *Supervisor) Run(ctx context.Context, spec task.Spec) task.Result {
	payload, err := json.Marshal(spec)
	if err != nil {
		return task.WorkerCrash(spec.TaskID, err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stdout, runErr := s.exec.Run(runCtx, payload)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Warn("task killed at deadline",
			logging.String(logging.FieldTaskID, spec.TaskID),
			logging.String("timeout", s.timeout.String()))
		return task.Timeout(spec.TaskID, s.timeout)
	}
	if ctx.Err() != nil {
		return task.WorkerCrash(spec.TaskID, ctx.Err())
	}
	if runErr != nil {
		// The child exits zero even for failed conversions; a non-zero
		// exit means the child itself died.
		return task.WorkerCrash(spec.TaskID, runErr)
	}

	var result task.Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &result); err != nil {
		return task.WorkerCrash(spec.TaskID, "no result returned from child")
	}
	if result.TaskID == "" {
		result.TaskID = spec.TaskID
	}
	return result
}

// selfExecutor spawns the running binary as the child.
type selfExecutor struct {
	binary string
}

func newSelfExecutor() (Executor, error) {
	binary, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return selfExecutor{binary: binary}, nil
}

func (e selfExecutor) Run(ctx context.Context, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.binary, "run-task") //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = reapDelay

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}
