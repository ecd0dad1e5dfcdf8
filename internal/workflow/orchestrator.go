package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cdgrab/internal/config"
	"cdgrab/internal/logging"
	"cdgrab/internal/procexec"
	"cdgrab/internal/provision"
	"cdgrab/internal/services"
	"cdgrab/internal/transcript"
)

// Provisioner places a tool executable on disk.
type Provisioner interface {
	Ensure(ctx context.Context, tool provision.Tool) (provision.Binary, error)
}

// Sink receives transcript lines.
type Sink interface {
	Append(line transcript.Line) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the os/exec runner (primarily for tests).
func WithRunner(runner procexec.Runner) Option {
	return func(o *Orchestrator) {
		if runner != nil {
			o.runner = runner
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithFailOnExitCode makes the download phase wait for the downloader's exit
// status and fail the job on a non-zero code.
func WithFailOnExitCode(enabled bool) Option {
	return func(o *Orchestrator) {
		o.failOnExitCode = enabled
	}
}

// Orchestrator runs download jobs one at a time.
type Orchestrator struct {
	provisioner    Provisioner
	sink           Sink
	runner         procexec.Runner
	logger         *slog.Logger
	failOnExitCode bool
	now            func() time.Time

	mu     sync.Mutex
	active *Job
	closed bool
	// running counts job goroutines and the exit-status watchers that may
	// outlive them. Add happens under mu while !closed, or from a goroutine
	// already counted.
	running sync.WaitGroup
}

// New constructs an orchestrator.
func New(provisioner Provisioner, sink Sink, opts ...Option) (*Orchestrator, error) {
	if provisioner == nil || sink == nil {
		return nil, errors.New("workflow: provisioner and sink are required")
	}
	o := &Orchestrator{
		provisioner: provisioner,
		sink:        sink,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "workflow")
	if o.runner == nil {
		o.runner = procexec.NewExecRunner(o.logger)
	}
	return o, nil
}

// NewFromConfig wires the provisioner and exec runner described by cfg.
func NewFromConfig(cfg *config.Config, sink Sink, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	prov, err := provision.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(prov, sink,
		WithLogger(logger),
		WithRunner(procexec.NewExecRunner(logger)),
		WithFailOnExitCode(cfg.Download.FailOnExitCode),
	)
}

// Submit validates the request and starts the job in the background. It
// returns ErrBusy while another job is running and ErrShutdown after
// Shutdown. ctx bounds the child processes: cancelling it kills them and the
// job fails with a cancelled reason.
func (o *Orchestrator) Submit(ctx context.Context, sourceURL, targetDir string) (*Job, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	targetDir = strings.TrimSpace(targetDir)
	if sourceURL == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "source URL is required", nil)
	}
	// The URL is the downloader's last argument; a leading dash would make it
	// an option.
	if strings.HasPrefix(sourceURL, "-") {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "source URL must not start with '-'", nil)
	}
	if targetDir == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "target directory is required", nil)
	}
	// The downloader runs inside targetDir, so a relative path would nest.
	absDir, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "resolve target directory", err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrShutdown
	}
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	job := &Job{
		ID:          uuid.NewString(),
		URL:         sourceURL,
		TargetDir:   absDir,
		SubmittedAt: o.now().UTC(),
		done:        make(chan struct{}),
	}
	o.active = job
	o.running.Add(1)
	o.mu.Unlock()

	go o.run(ctx, job)
	return job, nil
}

// Run submits a job and waits for its outcome.
func (o *Orchestrator) Run(ctx context.Context, sourceURL, targetDir string) (Outcome, error) {
	job, err := o.Submit(ctx, sourceURL, targetDir)
	if err != nil {
		return Outcome{}, err
	}
	return job.Wait(ctx)
}

// Active returns the running job, if any.
func (o *Orchestrator) Active() *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Shutdown stops accepting jobs, then waits for the running job and any
// exit-status watcher it left behind. It does not cancel the job; cancel the
// context given to Submit for that.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	defer o.running.Done()
	ctx = services.WithJobID(ctx, job.ID)
	outcome := o.execute(ctx, job)

	o.mu.Lock()
	if o.active == job {
		o.active = nil
	}
	o.mu.Unlock()
	job.finish(outcome)
}
