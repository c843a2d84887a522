package pipeline

import (
	"context"

	"golang.org/x/time/rate"
)

// Waker asks the UI to repaint. Wake must be safe to call from any goroutine,
// must not block, and may coalesce. It carries no payload; results are read
// with Scheduler.Poll.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to Waker. The function must not block.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

// NopWaker ignores wakes. Consumers using it must poll on a timer.
type NopWaker struct{}

func (NopWaker) Wake() {}

// Signal is a coalescing Waker backed by a one-slot channel: any number of
// wakes before the consumer reads C collapse into a single pending signal.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

func (s *Signal) Wake() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C is readable once per coalesced burst of wakes.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Relay forwards coalesced wakes from sig to repaint until ctx ends. It exists
// for front ends whose repaint request may block, so workers only ever touch
// the non-blocking Signal. A nil limiter forwards every burst immediately.
func Relay(ctx context.Context, sig *Signal, limiter *rate.Limiter, repaint func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig.C():
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		repaint()
	}
}
