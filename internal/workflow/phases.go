package workflow

import "path/filepath"

// Phase names one step of a download job. Transcript lines carry it as a tag.
type Phase string

const (
	PhaseProvisionDownloader Phase = "provision-downloader"
	PhaseVerifyDownloader    Phase = "verify-downloader"
	PhaseProvisionTranscoder Phase = "provision-transcoder"
	PhaseVerifyTranscoder    Phase = "verify-transcoder"
	PhaseDownload            Phase = "download"
)

// Phases lists the phases in execution order.
func Phases() []Phase {
	return []Phase{
		PhaseProvisionDownloader,
		PhaseVerifyDownloader,
		PhaseProvisionTranscoder,
		PhaseVerifyTranscoder,
		PhaseDownload,
	}
}

const (
	downloaderVersionFlag = "--version"
	transcoderVersionFlag = "-version"
	outputTemplate        = "%(title)s.%(ext)s"
	successSummary        = "Download finished"
)

// DownloadArgs is the downloader argument vector for fetching the audio of
// sourceURL into targetDir.
func DownloadArgs(sourceURL, targetDir string) []string {
	return []string{
		"--extract-audio",
		"--format", "bestaudio/best",
		"--ignore-errors",
		"--no-playlist",
		"--continue",
		"--no-abort-on-error",
		"-o", filepath.Join(targetDir, outputTemplate),
		sourceURL,
	}
}
