package procexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/alessio/shellescape"

	"cdgrab/internal/logging"
)

// Capture selects which output streams are exposed on the Handle.
type Capture int

const (
	CaptureStdout Capture = 1 << iota
	CaptureStderr
	CaptureBoth = CaptureStdout | CaptureStderr
)

func (c Capture) String() string {
	switch c {
	case CaptureStdout:
		return "stdout"
	case CaptureStderr:
		return "stderr"
	case CaptureBoth:
		return "stdout+stderr"
	default:
		return "none"
	}
}

// Spec describes one invocation. Args are passed verbatim, never through a
// shell. An empty Dir inherits the caller's working directory.
type Spec struct {
	Path    string
	Args    []string
	Dir     string
	Capture Capture
}

// Describe renders the invocation as a shell-quoted command line for display.
func Describe(spec Spec) string {
	return shellescape.QuoteCommand(append([]string{spec.Path}, spec.Args...))
}

// Runner starts processes.
type Runner interface {
	Spawn(ctx context.Context, spec Spec) (*Handle, error)
}

// ExecRunner starts processes with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

// NewExecRunner returns a runner that logs launches through logger.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Logger: logging.NewComponentLogger(logger, "procexec")}
}

// Spawn starts the process and returns without waiting for it. The context
// kills the process when cancelled.
func (r *ExecRunner) Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.Path == "" {
		return nil, &SpawnError{Kind: NotFound, Err: errors.New("empty executable path")}
	}
	if err := checkExecutable(spec.Path); err != nil {
		return nil, newSpawnError(spec.Path, err)
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	configureCommand(cmd)

	var readers, writers []*os.File
	cleanup := func() {
		for _, f := range readers {
			_ = f.Close()
		}
		for _, f := range writers {
			_ = f.Close()
		}
	}
	pipe := func() (*os.File, error) {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		readers = append(readers, pr)
		writers = append(writers, pw)
		return pw, nil
	}

	var stdout, stderr *os.File
	if spec.Capture&CaptureStdout != 0 {
		w, err := pipe()
		if err != nil {
			cleanup()
			return nil, &SpawnError{Kind: Other, Path: spec.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
		}
		cmd.Stdout = w
		stdout = readers[len(readers)-1]
	}
	if spec.Capture&CaptureStderr != 0 {
		w, err := pipe()
		if err != nil {
			cleanup()
			return nil, &SpawnError{Kind: Other, Path: spec.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
		}
		cmd.Stderr = w
		stderr = readers[len(readers)-1]
	}

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, newSpawnError(spec.Path, err)
	}
	// The child holds its own copies of the write ends; EOF arrives once it
	// and any descendants exit.
	for _, w := range writers {
		_ = w.Close()
	}

	logging.WithContext(ctx, r.logger()).Debug("process started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String("command", Describe(spec)),
		logging.String("dir", spec.Dir),
		logging.String("capture", spec.Capture.String()),
	)

	h := &Handle{PID: cmd.Process.Pid, wait: func() (ExitStatus, error) { return waitCommand(cmd) }}
	if stdout != nil {
		h.Stdout = stdout
		h.closers = append(h.closers, stdout)
	}
	if stderr != nil {
		h.Stderr = stderr
		h.closers = append(h.closers, stderr)
	}
	return h, nil
}

func (r *ExecRunner) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

func waitCommand(cmd *exec.Cmd) (ExitStatus, error) {
	err := cmd.Wait()
	state := cmd.ProcessState
	if state == nil {
		return ExitStatus{Code: -1}, fmt.Errorf("wait command: %w", err)
	}
	status := ExitStatus{Code: state.ExitCode(), Signaled: !state.Exited()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return status, fmt.Errorf("wait command: %w", err)
	}
	return status, nil
}
