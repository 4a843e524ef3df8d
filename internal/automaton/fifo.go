package automaton

import (
	"context"
	"sync"
)

// FIFO is the bounded input queue of a machine. The host side is the only
// producer and the machine the only consumer.
//
// Push blocks while the queue is full. That block is the rate-matching
// mechanism between host and machine, so the queue must never grow: there is
// no unbounded fallback.
//
// The queue uses a signal channel so a blocked Push can also watch its
// context (a plain sync.Cond cannot).
type FIFO struct {
	mu     sync.Mutex
	words  []uint32 // ring storage, len == capacity
	head   int
	n      int
	closed bool

	space chan struct{} // signalled after each pull (buffered, size 1)
	done  chan struct{} // closed by Close
}

// NewFIFO creates a queue holding up to depth words.
func NewFIFO(depth int) *FIFO {
	if depth < 1 {
		depth = 1
	}
	return &FIFO{
		words: make([]uint32, depth),
		space: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends w, blocking while the queue is full. It returns ctx.Err() if
// the context ends first and ErrFIFOClosed after Close. A word is either fully
// queued or not queued at all.
func (q *FIFO) Push(ctx context.Context, w uint32) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrFIFOClosed
		}
		if q.n < len(q.words) {
			q.words[(q.head+q.n)%len(q.words)] = w
			q.n++
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrFIFOClosed
		case <-q.space:
			// a word was pulled; retry
		}
	}
}

// TryPush appends w without blocking. It reports false if the queue is full
// or closed.
func (q *FIFO) TryPush(w uint32) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.n == len(q.words) {
		return false
	}
	q.words[(q.head+q.n)%len(q.words)] = w
	q.n++
	return true
}

// TryPull removes the oldest word. It never blocks; the machine stalls on an
// empty queue instead of waiting here.
func (q *FIFO) TryPull() (uint32, bool) {
	q.mu.Lock()
	if q.n == 0 {
		q.mu.Unlock()
		return 0, false
	}
	w := q.words[q.head]
	q.head = (q.head + 1) % len(q.words)
	q.n--
	q.mu.Unlock()

	q.signalSpace()
	return w, true
}

// Drain discards queued words and wakes a blocked producer.
func (q *FIFO) Drain() int {
	q.mu.Lock()
	n := q.n
	q.head, q.n = 0, 0
	q.mu.Unlock()

	if n > 0 {
		q.signalSpace()
	}
	return n
}

func (q *FIFO) signalSpace() {
	// non-blocking: the buffer of 1 coalesces repeated signals
	select {
	case q.space <- struct{}{}:
	default:
	}
}

// Len returns the number of queued words.
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the queue depth.
func (q *FIFO) Cap() int {
	return len(q.words)
}

// Close rejects further pushes and wakes a blocked producer. Queued words stay
// available to TryPull.
func (q *FIFO) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
