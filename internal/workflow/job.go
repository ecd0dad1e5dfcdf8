package workflow

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned by Submit while another job is still running.
var ErrBusy = errors.New("a download job is already running")

// ErrShutdown is returned by Submit once Shutdown has been called.
var ErrShutdown = errors.New("orchestrator is shut down")

// Outcome is the terminal result of a job: a success with a summary or a
// failure with a reason.
type Outcome struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Reason  string `json:"reason,omitempty"`
	// Phase is the phase that failed, or PhaseDownload on success.
	Phase Phase `json:"phase"`
	// ExitCode is the downloader's exit code when it was awaited before the
	// outcome was decided, otherwise -1.
	ExitCode int `json:"exit_code"`
	// Err is the classified error behind a failure.
	Err error `json:"-"`
}

func succeeded(summary string, exitCode int) Outcome {
	return Outcome{Success: true, Summary: summary, Phase: PhaseDownload, ExitCode: exitCode}
}

// Job is one submitted download.
type Job struct {
	ID          string
	URL         string
	TargetDir   string
	SubmittedAt time.Time

	done    chan struct{}
	outcome Outcome
}

// Done is closed once the outcome is available.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Outcome returns the result without blocking. ok is false while the job is
// still running.
func (j *Job) Outcome() (outcome Outcome, ok bool) {
	select {
	case <-j.done:
		return j.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// finish records the outcome exactly once.
func (j *Job) finish(outcome Outcome) {
	j.outcome = outcome
	close(j.done)
}
