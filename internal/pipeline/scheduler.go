package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tinywii/internal/budget"
	"tinywii/internal/logging"
	"tinywii/internal/services"
)

type schedulerState int

const (
	stateIdle schedulerState = iota
	stateRunning
	stateClosed
)

// Scheduler owns the two stage queues, their worker pools, and the
// completion map. Submissions never block; results are collected with Poll.
type Scheduler struct {
	budget      budget.Budget
	logger      *slog.Logger
	waker       Waker
	queues      [2]*workQueue
	pools       [2]*pool
	completions *completionMap

	next      atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	mu     sync.Mutex
	state  schedulerState
	cancel context.CancelFunc
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithWaker registers the repaint capability invoked after every completion.
func WithWaker(w Waker) Option {
	return func(s *Scheduler) {
		if w != nil {
			s.waker = w
		}
	}
}

// WithLogger sets the logger used for task lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stats is a point-in-time view of scheduler load.
type Stats struct {
	Budget         budget.Budget
	PreloadQueued  int
	ProcessQueued  int
	PreloadRunning int
	ProcessRunning int
	InFlight       int
	Undrained      int
	Completed      uint64
	Failed         uint64
}

// New constructs a scheduler sized by b. Workers start with Start.
func New(b budget.Budget, opts ...Option) (*Scheduler, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		budget:      b,
		logger:      logging.NewNop(),
		waker:       NopWaker{},
		completions: newCompletionMap(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "pipeline")
	s.queues[StagePreload] = newWorkQueue()
	s.queues[StageProcess] = newWorkQueue()
	s.pools[StagePreload] = newPool(StagePreload, b.Preloader, s.queues[StagePreload], s.execute)
	s.pools[StageProcess] = newPool(StageProcess, b.Processor, s.queues[StageProcess], s.execute)
	return s, nil
}

// Budget returns the worker allotment the scheduler was built with.
func (s *Scheduler) Budget() budget.Budget {
	return s.budget
}

// Start launches the worker pools. Tasks submitted earlier begin executing.
// The context bounds the life of the workers and is handed to every unit of
// work.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return errors.New("scheduler already running")
	case stateClosed:
		return errors.New("scheduler is shut down")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = stateRunning
	for _, p := range s.pools {
		p.start(runCtx)
	}
	s.logger.Debug("scheduler started",
		logging.Int("preloader_threads", s.budget.Preloader),
		logging.Int("processor_threads", s.budget.Processor),
	)
	return nil
}

// Shutdown stops accepting work, drops queued tasks without recording them,
// and waits for running tasks to finish. When ctx ends first, the work
// context is cancelled, late results are discarded, and ctx.Err is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.state == stateRunning
	s.state = stateClosed
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	dropped := 0
	for _, q := range s.queues {
		for _, t := range q.Close() {
			s.completions.forget(t.handle)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Info("dropped queued tasks at shutdown", logging.Int("count", dropped))
	}
	if !wasRunning {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.pools {
		g.Go(func() error { return p.wait(gctx) })
	}
	err := g.Wait()
	if err != nil {
		s.completions.discardAll()
		cancel()
		s.logger.Warn("shutdown deadline reached with tasks still running", logging.Error(err))
		return err
	}
	cancel()
	s.logger.Debug("scheduler stopped")
	return nil
}

// SubmitPreload enqueues work on the preloader stage.
func (s *Scheduler) SubmitPreload(label string, work Work) Handle {
	return s.SubmitJob(Job{Stage: StagePreload, Label: label, Work: work})
}

// SubmitProcess enqueues work on the processor stage.
func (s *Scheduler) SubmitProcess(label string, work Work) Handle {
	return s.SubmitJob(Job{Stage: StageProcess, Label: label, Work: work})
}

// Submit enqueues work on stage.
func (s *Scheduler) Submit(stage Stage, label string, work Work) Handle {
	return s.SubmitJob(Job{Stage: stage, Label: label, Work: work})
}

// SubmitJob enqueues job and returns its handle immediately. A job that
// cannot be queued (unknown stage, scheduler shut down) still completes: its
// failure is recorded right away so callers always observe a terminal state.
func (s *Scheduler) SubmitJob(job Job) Handle {
	t := &task{
		handle:    s.allocate(),
		stage:     job.Stage,
		label:     job.Label,
		requestID: job.RequestID,
		work:      job.Work,
	}
	s.enqueue(t)
	return t.handle
}

// Poll returns every completion recorded since the previous call, in the
// order tasks finished. It never blocks and returns nil when nothing is new.
func (s *Scheduler) Poll() []Completion {
	return s.completions.drain()
}

// Cancel removes a task that is still queued. It returns false once a worker
// has claimed the task, or for an unknown handle. A cancelled task produces
// no completion.
func (s *Scheduler) Cancel(h Handle) bool {
	stage, ok := s.completions.stageOf(h)
	if !ok || !stage.valid() {
		return false
	}
	if !s.queues[stage].Remove(h) {
		return false
	}
	s.completions.forget(h)
	s.logger.Debug("queued task cancelled", logging.String("handle", h.String()), logging.String(logging.FieldStage, stage.String()))
	return true
}

// Pending counts tasks submitted but not yet completed or cancelled.
func (s *Scheduler) Pending() int {
	inflight, _ := s.completions.counts()
	return inflight
}

// Idle reports whether nothing is in flight and every completion has been
// polled.
func (s *Scheduler) Idle() bool {
	inflight, undrained := s.completions.counts()
	return inflight == 0 && undrained == 0
}

// Stats reports current queue depths and totals.
func (s *Scheduler) Stats() Stats {
	inflight, undrained := s.completions.counts()
	return Stats{
		Budget:         s.budget,
		PreloadQueued:  s.queues[StagePreload].Len(),
		ProcessQueued:  s.queues[StageProcess].Len(),
		PreloadRunning: int(s.pools[StagePreload].running.Load()),
		ProcessRunning: int(s.pools[StageProcess].running.Load()),
		InFlight:       inflight,
		Undrained:      undrained,
		Completed:      s.completed.Load(),
		Failed:         s.failed.Load(),
	}
}

func (s *Scheduler) allocate() Handle {
	return Handle(s.next.Add(1))
}

func (s *Scheduler) enqueue(t *task) bool {
	s.completions.begin(t.handle, t.stage)
	if !t.stage.valid() {
		s.reject(t, services.Wrap(services.ErrConfiguration, "pipeline", "submit", "unknown stage "+t.stage.String(), nil))
		return false
	}
	if !s.queues[t.stage].Push(t) {
		s.reject(t, services.Wrap(services.ErrCancelled, "pipeline", "submit", "scheduler is shut down", nil))
		return false
	}
	return true
}

func (s *Scheduler) reject(t *task, err error) {
	c := Completion{
		Handle:    t.handle,
		Stage:     t.stage,
		Label:     t.label,
		RequestID: t.requestID,
		Parent:    t.parent,
		Err:       err,
		Finished:  time.Now(),
	}
	if s.completions.record(c) {
		s.completed.Add(1)
		s.failed.Add(1)
		s.waker.Wake()
	}
}

func (s *Scheduler) execute(ctx context.Context, t *task) {
	ctx = services.WithTaskID(ctx, uint64(t.handle))
	ctx = services.WithStage(ctx, t.stage.String())
	ctx = services.WithRequestID(ctx, t.requestID)

	c := Completion{
		Handle:    t.handle,
		Stage:     t.stage,
		Label:     t.label,
		RequestID: t.requestID,
		Parent:    t.parent,
		Started:   time.Now(),
	}
	outcome, err := s.invoke(ctx, t)
	if err != nil {
		c.Err = err
	} else {
		c.Value = outcome.Value
		c.Spawned = s.chain(t, outcome.Next)
	}
	c.Finished = time.Now()
	s.finish(ctx, c)
}

func (s *Scheduler) invoke(ctx context.Context, t *task) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{}
			err = services.Wrap(services.ErrInternal, "pipeline", t.label, fmt.Sprintf("panic: %v", r), nil)
			logging.WithContext(ctx, s.logger).Error("unit of work panicked",
				logging.String("label", t.label),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	if t.work == nil {
		return Outcome{}, services.Wrap(services.ErrInternal, "pipeline", t.label, "no work function", nil)
	}
	return t.work(ctx)
}

// chain enqueues follow-up jobs before the parent is recorded so Pending
// never reaches zero while a chain is still live.
func (s *Scheduler) chain(parent *task, jobs []Job) []Handle {
	if len(jobs) == 0 {
		return nil
	}
	handles := make([]Handle, 0, len(jobs))
	for _, job := range jobs {
		requestID := job.RequestID
		if requestID == "" {
			requestID = parent.requestID
		}
		child := &task{
			handle:    s.allocate(),
			stage:     job.Stage,
			label:     job.Label,
			requestID: requestID,
			parent:    parent.handle,
			work:      job.Work,
		}
		s.enqueue(child)
		handles = append(handles, child.handle)
	}
	return handles
}

func (s *Scheduler) finish(ctx context.Context, c Completion) {
	log := logging.WithContext(ctx, s.logger)
	if !s.completions.record(c) {
		log.Debug("completion discarded", logging.String("label", c.Label))
		return
	}
	s.completed.Add(1)
	switch {
	case c.Err == nil:
		log.Debug("task completed",
			logging.String("label", c.Label),
			logging.Duration("elapsed", c.Elapsed()),
			logging.Int("spawned", len(c.Spawned)),
		)
	case services.IsCancelled(c.Err):
		s.failed.Add(1)
		log.Info("task cancelled", logging.String("label", c.Label))
	default:
		s.failed.Add(1)
		log.Warn("task failed", logging.Args(append(logging.ErrorAttrs(c.Err), logging.String("label", c.Label))...)...)
	}
	s.waker.Wake()
}
