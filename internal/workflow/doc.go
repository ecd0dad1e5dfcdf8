// Package workflow runs download jobs.
//
// The Orchestrator takes a source URL and a target directory and walks one
// job through five phases: provision the downloader, probe its version,
// provision the transcoder, probe its version, then run the download. Every
// line the tools print is forwarded to a Sink tagged with the job and phase;
// the orchestrator itself keeps only the final Outcome.
//
// Only one job runs at a time. Submit returns immediately; the job runs on
// its own goroutine and its stream pumps and exit-status watchers run on
// goroutines of their own.
package workflow
