package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cdgrab/internal/linepump"
	"cdgrab/internal/logging"
	"cdgrab/internal/procexec"
	"cdgrab/internal/provision"
	"cdgrab/internal/services"
	"cdgrab/internal/transcript"
)

type exitResult struct {
	status procexec.ExitStatus
	err    error
}

// execute walks the phases in order; the first failure ends the job.
func (o *Orchestrator) execute(ctx context.Context, job *Job) Outcome {
	o.phaseLogger(ctx).Info("download job started",
		logging.String("url", job.URL),
		logging.String("target_dir", job.TargetDir),
		logging.String(logging.FieldEventType, "job_start"),
	)

	downloader, err := o.provisionTool(ctx, job, PhaseProvisionDownloader, provision.Downloader)
	if err != nil {
		return o.fail(ctx, job, PhaseProvisionDownloader, err)
	}
	o.probe(ctx, job, PhaseVerifyDownloader, "downloader", downloader.Path, downloaderVersionFlag)
	if err := ctx.Err(); err != nil {
		return o.cancelled(ctx, job, PhaseVerifyDownloader, err)
	}

	transcoder, err := o.provisionTool(ctx, job, PhaseProvisionTranscoder, provision.Transcoder)
	if err != nil {
		return o.fail(ctx, job, PhaseProvisionTranscoder, err)
	}
	o.probe(ctx, job, PhaseVerifyTranscoder, "transcoder", transcoder.Path, transcoderVersionFlag)
	if err := ctx.Err(); err != nil {
		return o.cancelled(ctx, job, PhaseVerifyTranscoder, err)
	}

	return o.download(ctx, job, downloader.Path)
}

func (o *Orchestrator) provisionTool(ctx context.Context, job *Job, phase Phase, tool provision.Tool) (provision.Binary, error) {
	ctx = services.WithPhase(ctx, string(phase))
	o.status(ctx, job, phase, fmt.Sprintf("provisioning %s", tool))

	bin, err := o.provisioner.Ensure(ctx, tool)
	if err != nil {
		return provision.Binary{}, services.Wrap(services.ErrProvisionFailed, "", "", fmt.Sprintf("provisioning %s failed", tool), err)
	}
	o.phaseLogger(ctx).Debug("tool ready",
		logging.String("tool", string(tool)),
		logging.String("path", bin.Path),
		logging.Bool("rewritten", bin.Rewritten),
	)
	return bin, nil
}

// probe runs a version check. Nothing it reports can fail the job.
func (o *Orchestrator) probe(ctx context.Context, job *Job, phase Phase, name, path, flag string) {
	ctx = services.WithPhase(ctx, string(phase))
	logger := o.phaseLogger(ctx)
	spec := procexec.Spec{Path: path, Args: []string{flag}, Capture: procexec.CaptureStderr}
	o.status(ctx, job, phase, fmt.Sprintf("checking %s version: %s", name, procexec.Describe(spec)))

	handle, err := o.runner.Spawn(ctx, spec)
	if err != nil {
		o.emit(job, phase, transcript.StreamStatus, fmt.Sprintf("%s version check could not start: %v", name, err), false)
		logger.Warn("version probe failed to start; continuing",
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_spawn_failed"),
			logging.String(logging.FieldErrorHint, "the download phase will likely fail too"),
		)
		return
	}

	exits := make(chan exitResult, 1)
	go func() {
		status, err := handle.Wait()
		exits <- exitResult{status: status, err: err}
	}()

	stop := closeOnCancel(ctx, handle)
	o.forward(ctx, job, phase, transcript.StreamStderr, handle.Stderr)
	stop()
	_ = handle.Close()

	res := <-exits
	switch {
	case res.err != nil:
		o.emit(job, phase, transcript.StreamStatus, fmt.Sprintf("%s version check: %v", name, res.err), false)
		logger.Warn("version probe wait failed", logging.Error(res.err), logging.String(logging.FieldEventType, "probe_wait_failed"))
	case !res.status.Success():
		o.emit(job, phase, transcript.StreamStatus, fmt.Sprintf("%s version check ended with %s", name, res.status), false)
		logger.Warn("version probe exited non-zero",
			logging.Int("exit_code", res.status.Code),
			logging.String(logging.FieldEventType, "probe_exit_status"),
		)
	default:
		logger.Debug("version probe complete")
	}
}

func (o *Orchestrator) download(ctx context.Context, job *Job, downloaderPath string) Outcome {
	ctx = services.WithPhase(ctx, string(PhaseDownload))
	logger := o.phaseLogger(ctx)

	if err := os.MkdirAll(job.TargetDir, 0o755); err != nil {
		return o.fail(ctx, job, PhaseDownload, services.Wrap(services.ErrDirectoryCreateFailed, "", "", "creating target directory failed", err))
	}

	spec := procexec.Spec{
		Path:    downloaderPath,
		Args:    DownloadArgs(job.URL, job.TargetDir),
		Dir:     job.TargetDir,
		Capture: procexec.CaptureStdout,
	}
	o.status(ctx, job, PhaseDownload, "running "+procexec.Describe(spec))

	handle, err := o.runner.Spawn(ctx, spec)
	if err != nil {
		return o.fail(ctx, job, PhaseDownload, services.Wrap(services.ErrSpawnFailed, "", "", "starting downloader failed", err))
	}

	exits := make(chan exitResult, 1)
	o.running.Add(1)
	go func() {
		defer o.running.Done()
		status, err := handle.Wait()
		o.reportExit(ctx, job, status, err)
		exits <- exitResult{status: status, err: err}
	}()

	stop := closeOnCancel(ctx, handle)
	o.forward(ctx, job, PhaseDownload, transcript.StreamStdout, handle.Stdout)
	stop()
	_ = handle.Close()

	if err := ctx.Err(); err != nil {
		return o.cancelled(ctx, job, PhaseDownload, err)
	}
	if !o.failOnExitCode {
		o.emit(job, PhaseDownload, transcript.StreamStatus, successSummary, false)
		logger.Info("download job finished",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("target_dir", job.TargetDir),
		)
		return succeeded(successSummary, -1)
	}

	res := <-exits
	if res.err != nil {
		return o.fail(ctx, job, PhaseDownload, services.Wrap(services.ErrExitStatus, "", "", "waiting for downloader failed", res.err))
	}
	if !res.status.Success() {
		outcome := o.fail(ctx, job, PhaseDownload, services.Wrap(services.ErrExitStatus, "", "", fmt.Sprintf("downloader exited with code %d", res.status.Code), nil))
		outcome.ExitCode = res.status.Code
		return outcome
	}
	o.emit(job, PhaseDownload, transcript.StreamStatus, successSummary, false)
	logger.Info("download job finished",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("target_dir", job.TargetDir),
		logging.Int("exit_code", res.status.Code),
	)
	return succeeded(successSummary, res.status.Code)
}

// reportExit records the downloader's exit status. In the default mode it may
// land after the job's outcome.
func (o *Orchestrator) reportExit(ctx context.Context, job *Job, status procexec.ExitStatus, err error) {
	logger := o.phaseLogger(ctx)
	if err != nil {
		o.emit(job, PhaseDownload, transcript.StreamStatus, fmt.Sprintf("waiting for downloader failed: %v", err), false)
		logger.Warn("downloader wait failed", logging.Error(err), logging.String(logging.FieldEventType, "exit_wait_failed"))
		return
	}
	o.emit(job, PhaseDownload, transcript.StreamStatus, fmt.Sprintf("downloader finished with %s", status), false)
	level := slog.LevelInfo
	if !status.Success() {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "downloader exited",
		logging.Int("exit_code", status.Code),
		logging.Bool("signaled", status.Signaled),
		logging.String(logging.FieldEventType, "exit_status"),
	)
}

// forward pumps r into the sink until the stream ends. A read error ends the
// stream with a status line but never fails the job.
func (o *Orchestrator) forward(ctx context.Context, job *Job, phase Phase, stream transcript.Stream, r io.Reader) {
	if r == nil {
		return
	}
	lossy := 0
	for ev := range linepump.Start(r) {
		if ev.Done {
			// Reads fail on purpose once a cancelled job closes the stream.
			if ev.Err != nil && ctx.Err() == nil {
				o.emit(job, phase, transcript.StreamStatus, fmt.Sprintf("reading %s failed: %v", stream, ev.Err), false)
				o.phaseLogger(ctx).Warn("stream ended with read error",
					logging.String("stream", string(stream)),
					logging.Error(ev.Err),
					logging.String(logging.FieldEventType, "stream_read_failed"),
				)
			}
			break
		}
		if ev.Lossy {
			lossy++
		}
		o.emit(job, phase, stream, ev.Text, ev.Lossy)
	}
	if lossy > 0 {
		o.phaseLogger(ctx).Debug("repaired invalid utf-8 in tool output",
			logging.String("stream", string(stream)),
			logging.Int("lines", lossy),
		)
	}
}

// closeOnCancel closes the handle's read ends when ctx is cancelled, so a
// pump blocked on a pipe still held open by a descendant process returns.
// The returned func stops the watch.
func closeOnCancel(ctx context.Context, handle *procexec.Handle) func() bool {
	return context.AfterFunc(ctx, func() { _ = handle.Close() })
}

func (o *Orchestrator) cancelled(ctx context.Context, job *Job, phase Phase, err error) Outcome {
	return o.fail(ctx, job, phase, services.Wrap(services.ErrCancelled, "", "", "download cancelled", err))
}

func (o *Orchestrator) fail(ctx context.Context, job *Job, phase Phase, err error) Outcome {
	// Anything that breaks after cancellation is reported as the cancellation.
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, services.ErrCancelled) {
		o.phaseLogger(ctx).Debug("phase failed after cancellation", logging.Error(err))
		err = services.Wrap(services.ErrCancelled, "", "", "download cancelled", cerr)
	}
	reason := services.Reason(err)
	o.emit(job, phase, transcript.StreamStatus, reason, false)
	logging.ErrorWithContext(o.phaseLogger(services.WithPhase(ctx, string(phase))), "download job failed", "job_failure",
		logging.String("reason", reason),
		logging.Error(err),
	)
	return Outcome{Reason: reason, Phase: phase, ExitCode: -1, Err: err}
}

func (o *Orchestrator) status(ctx context.Context, job *Job, phase Phase, text string) {
	o.emit(job, phase, transcript.StreamStatus, text, false)
	o.phaseLogger(ctx).Info(text, logging.String(logging.FieldEventType, "phase_start"))
}

func (o *Orchestrator) emit(job *Job, phase Phase, stream transcript.Stream, text string, lossy bool) {
	_ = o.sink.Append(transcript.Line{
		JobID:  job.ID,
		Phase:  string(phase),
		Stream: stream,
		Text:   text,
		Lossy:  lossy,
	})
}

func (o *Orchestrator) phaseLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, o.logger)
}
