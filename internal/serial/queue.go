// Package serial provides an executor that runs submitted callbacks one at
// a time, in submission order, on a background goroutine.
package serial

import "sync"

// Queue runs functions sequentially in FIFO order. A goroutine is started
// on demand when work arrives and exits once the queue drains, so an idle
// Queue holds no goroutine. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

// Submit enqueues fn. It never blocks and never runs fn on the calling
// goroutine.
func (q *Queue) Submit(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

// Wait blocks until every function submitted before the call has run.
func (q *Queue) Wait() {
	done := make(chan struct{})
	q.Submit(func() { close(done) })
	<-done
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
