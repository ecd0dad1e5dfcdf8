package procexec

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ExitStatus is how a finished process ended.
type ExitStatus struct {
	Code int
	// Signaled is true when the process was killed by a signal; Code is -1.
	Signaled bool
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return "killed by signal"
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Handle is a running process. Stdout and Stderr are nil unless captured.
type Handle struct {
	PID    int
	Stdout io.Reader
	Stderr io.Reader

	wait    func() (ExitStatus, error)
	closers []io.Closer

	waitOnce  sync.Once
	status    ExitStatus
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

// NewHandle assembles a handle from its parts. Readers that implement
// io.Closer are closed by Close. Runners other than ExecRunner use it.
func NewHandle(pid int, stdout, stderr io.Reader, wait func() (ExitStatus, error)) *Handle {
	h := &Handle{PID: pid, Stdout: stdout, Stderr: stderr, wait: wait}
	for _, r := range []io.Reader{stdout, stderr} {
		if c, ok := r.(io.Closer); ok {
			h.closers = append(h.closers, c)
		}
	}
	return h
}

// Wait blocks until the process exits. A non-zero exit is reported in the
// status, not as an error. Wait is idempotent and safe to call while the
// output streams are still being read.
func (h *Handle) Wait() (ExitStatus, error) {
	h.waitOnce.Do(func() {
		if h.wait == nil {
			h.waitErr = errors.New("procexec: handle has no process")
			return
		}
		h.status, h.waitErr = h.wait()
	})
	return h.status, h.waitErr
}

// Close releases the read ends of captured streams. Call it once the streams
// are drained; closing early makes pending reads fail.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		var errs []error
		for _, c := range h.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}
