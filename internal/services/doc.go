// Package services defines shared utilities consumed by the download workflow
// and the wrappers around external tools.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and phase names for logging.
//   - Structured error markers plus the Wrap helper that let callers classify
//     a job failure (provisioning, spawn, directory creation) with errors.Is
//     while still reading a single human-readable message.
//
// Use these helpers when wiring new phase logic so failure reporting and
// observability stay uniform across the orchestrator.
package services
