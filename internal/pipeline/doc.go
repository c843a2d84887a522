// Package pipeline runs background work for the library manager on two
// independently sized worker pools and hands results back to a frame-driven
// front end without ever blocking it.
//
// The preload stage is a small pool for discovery and lightweight metadata;
// the process stage is a larger pool for full disc reads, checksums, and
// transfers. Each stage owns a FIFO queue. A unit of work returns an Outcome
// that may list follow-up jobs, which the scheduler enqueues from the worker
// that produced them, so discovery can fan out into per-item processing
// without involving the UI.
//
// Results land in a completion map drained by Poll. After every completion
// the registered Waker is invoked; Signal coalesces bursts of wakes and Relay
// forwards them to a repaint function that is allowed to block. Front ends
// should also poll on a timer in case a wake was coalesced away.
//
// Only queued tasks can be cancelled. Running work is never interrupted except
// through its context when Shutdown outlives its deadline.
package pipeline
