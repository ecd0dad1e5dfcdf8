package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cdgrab/internal/transcript"
	"cdgrab/internal/workflow"
)

const exitWatchGrace = 5 * time.Second

var errDownloadFailed = errors.New("download failed")

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var targetDir string
	var saveLog string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download the audio of a URL into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			dir := strings.TrimSpace(targetDir)
			if dir == "" {
				dir = cfg.Download.TargetDir
			}

			tr := transcript.New()
			defer tr.Close()

			orch, err := workflow.NewFromConfig(cfg, tr, logger)
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			subCtx, stopSub := context.WithCancel(runCtx)
			printed := make(chan struct{})
			lines := tr.Subscribe(subCtx, 0)
			go func() {
				defer close(printed)
				for line := range lines {
					fmt.Fprintln(out, renderTranscriptLine(line, colorize))
				}
			}()

			job, err := orch.Submit(runCtx, args[0], dir)
			if err != nil {
				stopSub()
				<-printed
				return err
			}
			// Cancelling runCtx (SIGINT) kills the downloader and the job then
			// ends promptly with a cancelled outcome, so wait on it unbounded.
			outcome, runErr := job.Wait(context.Background())

			// Give the exit-status watcher a moment so its line is printed.
			graceCtx, cancelGrace := context.WithTimeout(context.Background(), exitWatchGrace)
			_ = orch.Shutdown(graceCtx)
			cancelGrace()

			tr.Close()
			<-printed
			stopSub()

			if path := strings.TrimSpace(saveLog); path != "" {
				if err := writeTranscript(path, tr); err != nil {
					return err
				}
			}

			if runErr != nil {
				return runErr
			}
			if !outcome.Success {
				return fmt.Errorf("%w: %s", errDownloadFailed, outcome.Reason)
			}
			fmt.Fprintln(out, renderStatusLine("result", statusOK, outcome.Summary, colorize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetDir, "dir", "d", "", "Target directory (defaults to download.target_dir)")
	cmd.Flags().StringVar(&saveLog, "save-log", "", "Also write the transcript to this file")
	return cmd
}

func writeTranscript(path string, tr *transcript.Transcript) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	if _, err := tr.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("save transcript: %w", err)
	}
	return f.Close()
}
