package pipeline

import "sync"

// completionMap tracks tasks between submission and drain. A handle enters
// the in-flight set on submission and leaves it exactly once: by being
// recorded, or by being forgotten when a queued task is cancelled or dropped.
type completionMap struct {
	mu       sync.Mutex
	inflight map[Handle]Stage
	done     []Completion
	discard  bool
}

func newCompletionMap() *completionMap {
	return &completionMap{inflight: make(map[Handle]Stage)}
}

func (m *completionMap) begin(h Handle, stage Stage) {
	m.mu.Lock()
	m.inflight[h] = stage
	m.mu.Unlock()
}

// record stores c when its handle is still in flight. It reports false for a
// duplicate or unknown handle, and after teardown when results are discarded.
func (m *completionMap) record(c Completion) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[c.Handle]; !ok {
		return false
	}
	delete(m.inflight, c.Handle)
	if m.discard {
		return false
	}
	m.done = append(m.done, c)
	return true
}

func (m *completionMap) forget(h Handle) {
	m.mu.Lock()
	delete(m.inflight, h)
	m.mu.Unlock()
}

func (m *completionMap) stageOf(h Handle) (Stage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stage, ok := m.inflight[h]
	return stage, ok
}

// drain returns everything recorded since the previous drain, in completion
// order.
func (m *completionMap) drain() []Completion {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.done) == 0 {
		return nil
	}
	out := m.done
	m.done = nil
	return out
}

func (m *completionMap) counts() (inflight, undrained int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight), len(m.done)
}

func (m *completionMap) discardAll() {
	m.mu.Lock()
	m.discard = true
	m.done = nil
	m.mu.Unlock()
}
