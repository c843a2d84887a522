package pipeline

import (
	"context"
	"strconv"
	"time"
)

// Stage selects which worker pool runs a task.
type Stage int

const (
	// StagePreload is the small pool for discovery and lightweight metadata.
	StagePreload Stage = iota
	// StageProcess is the large pool for full reads, checksums, and transfers.
	StageProcess
)

func (s Stage) String() string {
	switch s {
	case StagePreload:
		return "preload"
	case StageProcess:
		return "process"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s Stage) valid() bool {
	return s == StagePreload || s == StageProcess
}

// Handle identifies one submission. Handles are unique for the life of a
// scheduler and never reused.
type Handle uint64

func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// Work is the unit of work a worker executes. The context is cancelled only
// when shutdown outlives its deadline; work that wants to stop early must
// check it between steps.
type Work func(ctx context.Context) (Outcome, error)

// Outcome is what a unit of work produces on success. Next lists follow-up
// jobs that the scheduler enqueues from the worker before the completion is
// recorded.
type Outcome struct {
	Value any
	Next  []Job
}

// Done is an Outcome carrying only a value.
func Done(value any) Outcome {
	return Outcome{Value: value}
}

// Then is an Outcome carrying a value and follow-up jobs.
func Then(value any, next ...Job) Outcome {
	return Outcome{Value: value, Next: next}
}

// Job describes a submission. RequestID groups related jobs in logs; chained
// jobs inherit their parent's RequestID when left empty.
type Job struct {
	Stage     Stage
	Label     string
	RequestID string
	Work      Work
}

// Completion is the terminal record of one task. Exactly one Completion is
// produced per task that reached a worker; cancelled queued tasks produce
// none.
type Completion struct {
	Handle    Handle
	Stage     Stage
	Label     string
	RequestID string
	// Parent is the handle of the task whose Outcome spawned this one, or zero.
	Parent  Handle
	Spawned []Handle
	Value   any
	Err     error
	// Started is zero for tasks that never reached a worker.
	Started  time.Time
	Finished time.Time
}

// OK reports whether the task succeeded.
func (c Completion) OK() bool {
	return c.Err == nil
}

// Elapsed is the time spent executing the unit of work.
func (c Completion) Elapsed() time.Duration {
	if c.Started.IsZero() {
		return 0
	}
	return c.Finished.Sub(c.Started)
}

type task struct {
	handle    Handle
	stage     Stage
	label     string
	requestID string
	parent    Handle
	work      Work
}
