// Package services defines the shared error markers and context helpers used
// by the pipeline, the jobs it runs, and the front ends that display results.
//
// Key responsibilities:
//   - Structured error markers (io, format, network, configuration, cancelled,
//     internal) plus the Wrap helper that keeps both the marker and the cause
//     reachable through errors.Is.
//   - Context helpers that stamp task handles, stage names, and correlation
//     identifiers for logging.
//
// Use these helpers in new jobs so failures are classified the same way in
// logs, the TUI, and the CLI.
package services
