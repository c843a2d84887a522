package pipeline

import (
	"context"
	"sync"
)

// workQueue is an unbounded FIFO shared by the workers of one stage. Push
// never blocks; Pop blocks until a task arrives, the queue closes, or ctx ends.
type workQueue struct {
	mu     sync.Mutex
	items  []*task
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends t and reports false when the queue is closed.
func (q *workQueue) Push(t *task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.notify()
	return true
}

// Pop removes the oldest task.
func (q *workQueue) Pop(ctx context.Context) (*task, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Hand the coalesced signal on to the next idle worker.
				q.notify()
			}
			return t, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-q.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Remove drops a queued task by handle. It reports false when the task is
// not queued, typically because a worker already claimed it.
func (q *workQueue) Remove(h Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.items {
		if t.handle == h {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes, releases blocked workers, and returns the
// tasks that were still waiting.
func (q *workQueue) Close() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	dropped := q.items
	q.items = nil
	close(q.done)
	return dropped
}

func (q *workQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
