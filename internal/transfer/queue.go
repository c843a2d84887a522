package transfer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"tinywii/internal/logging"
	"tinywii/internal/pipeline"
)

// Submitter is the part of the scheduler the queue drives.
type Submitter interface {
	SubmitJob(job pipeline.Job) pipeline.Handle
	Cancel(h pipeline.Handle) bool
}

// Runner performs one transfer.
type Runner interface {
	Run(ctx context.Context, entry Entry) (any, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, entry Entry) (any, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, entry Entry) (any, error) {
	return f(ctx, entry)
}

// Queue runs transfers one at a time on the processor stage. Only the head
// entry is ever submitted to the scheduler; when its job finishes, the worker
// submits the next pending entry before the completion is recorded.
//
// The next entry is a fresh root job rather than an Outcome follow-up, so
// transfer completions carry no Parent. A follow-up would be skipped when
// the head fails, and its handle would only be known once the finished head
// was drained, leaving a promoted head that Cancel cannot reach.
type Queue struct {
	submit Submitter
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	nextID  ID
	pending []Entry
	current *Entry
	handle  pipeline.Handle
	running bool
	handles map[pipeline.Handle]Entry
}

// NewQueue builds a queue submitting through s.
func NewQueue(s Submitter, runner Runner, logger *slog.Logger) *Queue {
	return &Queue{
		submit:  s,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "transfer"),
		handles: make(map[pipeline.Handle]Entry),
	}
}

// Push appends entry and starts it when nothing is running. The assigned ID
// is returned.
func (q *Queue) Push(entry Entry) ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	entry.ID = q.nextID
	if entry.Created.IsZero() {
		entry.Created = time.Now()
	}
	if q.current == nil {
		q.startLocked(entry)
	} else {
		q.pending = append(q.pending, entry)
	}
	q.logger.Debug("transfer queued",
		logging.String("transfer_id", entry.ID.String()),
		logging.String("kind", string(entry.Kind)),
		logging.Int("pending", len(q.pending)),
	)
	return entry.ID
}

// Cancel removes a transfer that has not started. A head entry whose job is
// still waiting for a worker can be cancelled too; a running one cannot.
func (q *Queue) Cancel(id ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := slices.IndexFunc(q.pending, func(e Entry) bool { return e.ID == id }); idx >= 0 {
		q.pending = slices.Delete(q.pending, idx, idx+1)
		q.logger.Info("transfer cancelled", logging.String("transfer_id", id.String()))
		return true
	}
	if q.current != nil && q.current.ID == id && q.cancelHeadLocked() {
		q.logger.Info("transfer cancelled", logging.String("transfer_id", id.String()))
		q.advanceLocked()
		return true
	}
	return false
}

// CancelAll removes every transfer that has not started and returns how many
// were removed.
func (q *Queue) CancelAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := len(q.pending)
	q.pending = nil
	if q.current != nil && q.cancelHeadLocked() {
		removed++
	}
	if removed > 0 {
		q.logger.Info("transfers cancelled", logging.Int("count", removed))
	}
	return removed
}

// Current returns the head entry and whether its job has started.
func (q *Queue) Current() (Entry, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Entry{}, false, false
	}
	return *q.current, q.running, true
}

// Entries lists the head entry followed by the pending ones.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.pending)+1)
	if q.current != nil {
		out = append(out, *q.current)
	}
	return append(out, q.pending...)
}

// Len counts the head entry and pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}

// HasPending reports whether any transfer is queued or running.
func (q *Queue) HasPending() bool {
	return q.Len() > 0
}

// Resolve maps a scheduler completion back to its transfer entry. Each
// completion resolves once. A head entry the scheduler rejected without
// running is dropped so the queue moves on.
func (q *Queue) Resolve(c pipeline.Completion) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.handles[c.Handle]
	if !ok {
		return Entry{}, false
	}
	delete(q.handles, c.Handle)
	if c.Started.IsZero() && q.current != nil && q.current.ID == entry.ID {
		q.advanceLocked()
	}
	return entry, true
}

func (q *Queue) startLocked(entry Entry) {
	q.current = &entry
	q.running = false
	q.handle = q.submit.SubmitJob(pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "transfer " + entry.Display(),
		Work:  q.work(entry),
	})
	q.handles[q.handle] = entry
}

// cancelHeadLocked drops the head entry if its job has not been claimed.
func (q *Queue) cancelHeadLocked() bool {
	if q.running || !q.submit.Cancel(q.handle) {
		return false
	}
	delete(q.handles, q.handle)
	q.current = nil
	return true
}

func (q *Queue) advanceLocked() {
	q.current = nil
	q.running = false
	if len(q.pending) == 0 {
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.startLocked(next)
}

func (q *Queue) work(entry Entry) pipeline.Work {
	return func(ctx context.Context) (pipeline.Outcome, error) {
		q.mu.Lock()
		if q.current != nil && q.current.ID == entry.ID {
			q.running = true
		}
		q.mu.Unlock()

		defer func() {
			q.mu.Lock()
			if q.current != nil && q.current.ID == entry.ID {
				q.advanceLocked()
			}
			q.mu.Unlock()
		}()

		value, err := q.runner.Run(ctx, entry)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		return pipeline.Done(Result{Entry: entry, Value: value}), nil
	}
}
