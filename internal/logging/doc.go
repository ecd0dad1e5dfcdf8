// Package logging assembles structured slog loggers and formatting helpers used
// across cdgrab.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workflow code automatically tags log
// lines with job IDs and phase names. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
//
// Structured logs are operator diagnostics. The user-facing transcript of tool
// output lives in the transcript package and is not routed through slog.
package logging
