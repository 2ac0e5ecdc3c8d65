package util

import "sync"

// Progress is a coarse (processed, total) report from a long-running scan
type Progress struct {
	Stage     string
	Processed int
	Total     int
}

// Percent returns the completion percentage, 0 when the total is unknown
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// ProgressFunc receives progress updates
type ProgressFunc func(Progress)

// ProgressRelay forwards progress updates to a callback on its own goroutine.
// Report never blocks: if the callback is still busy with an earlier update,
// the pending update is replaced by the newer one.
type ProgressRelay struct {
	ch     chan Progress
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewProgressRelay starts a relay for fn. A nil fn yields a relay that drops everything.
func NewProgressRelay(fn ProgressFunc) *ProgressRelay {
	r := &ProgressRelay{
		ch:   make(chan Progress, 1),
		done: make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		for p := range r.ch {
			if fn != nil {
				fn(p)
			}
		}
	}()

	return r
}

// Report queues p for delivery, replacing any update the consumer has not picked up yet
func (r *ProgressRelay) Report(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	for i := 0; i < 2; i++ {
		select {
		case r.ch <- p:
			return
		default:
		}
		// Drop the stale update
		select {
		case <-r.ch:
		default:
		}
	}
}

// Close stops accepting updates. The last queued update is still delivered;
// use Done to wait for that.
func (r *ProgressRelay) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
}

// Done is closed once the consumer goroutine has exited
func (r *ProgressRelay) Done() <-chan struct{} {
	return r.done
}
