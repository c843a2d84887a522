// Package jobs defines the units of work submitted to the pipeline: library
// scans that fan out into per-game metadata loads and checksums, release
// checks, titles downloads, and the transfer runner behind the transfer
// queue.
package jobs
