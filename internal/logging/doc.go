// Package logging assembles structured slog loggers and formatting helpers used
// across tinywii.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so jobs automatically tag log lines with
// task handles, stages, and correlation IDs. A bounded Recent buffer captures
// warnings for the TUI, and a no-op logger serves tests and wiring code.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
