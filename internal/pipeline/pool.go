package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// pool runs a fixed number of persistent workers over one stage's queue.
type pool struct {
	stage   Stage
	size    int
	queue   *workQueue
	exec    func(context.Context, *task)
	wg      sync.WaitGroup
	running atomic.Int64
}

func newPool(stage Stage, size int, queue *workQueue, exec func(context.Context, *task)) *pool {
	return &pool{stage: stage, size: size, queue: queue, exec: exec}
}

func (p *pool) start(ctx context.Context) {
	p.wg.Add(p.size)
	for range p.size {
		go p.loop(ctx)
	}
}

func (p *pool) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		t, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.running.Add(1)
		p.exec(ctx, t)
		p.running.Add(-1)
	}
}

// wait blocks until every worker has exited or ctx ends.
func (p *pool) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
