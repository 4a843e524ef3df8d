package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/railsig/internal/automaton"
)

// ErrHandleStopped is returned by Push on a stopped FakeHandle.
var ErrHandleStopped = errors.New("testutil: push on stopped handle")

// FakeHandle is an automaton.Handle backed by a bare queue instead of a
// machine. Tests play the consumer with Pull.
type FakeHandle struct {
	queue *automaton.FIFO

	mu            sync.Mutex
	running       bool
	starts, stops int
	pushed        int
	pushAfterStop bool
	pushErr       error
}

// NewFakeHandle creates a handle whose queue holds depth words.
func NewFakeHandle(depth int) *FakeHandle {
	return &FakeHandle{queue: automaton.NewFIFO(depth)}
}

// Start implements automaton.Handle.
func (h *FakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = true
	h.starts++
	return nil
}

// Stop implements automaton.Handle. Queued words are discarded, as the
// machine does.
func (h *FakeHandle) Stop() error {
	h.mu.Lock()
	h.running = false
	h.stops++
	h.mu.Unlock()

	h.queue.Drain()
	return nil
}

// Push implements automaton.Handle.
func (h *FakeHandle) Push(ctx context.Context, word uint32) error {
	h.mu.Lock()
	if !h.running {
		h.pushAfterStop = true
		h.mu.Unlock()
		return ErrHandleStopped
	}
	if err := h.pushErr; err != nil {
		h.mu.Unlock()
		return err
	}
	h.mu.Unlock()

	if err := h.queue.Push(ctx, word); err != nil {
		return err
	}
	h.mu.Lock()
	h.pushed++
	h.mu.Unlock()
	return nil
}

// Pull consumes up to n queued words without blocking.
func (h *FakeHandle) Pull(n int) []uint32 {
	var words []uint32
	for i := 0; i < n; i++ {
		w, ok := h.queue.TryPull()
		if !ok {
			break
		}
		words = append(words, w)
	}
	return words
}

// Queued returns the number of unconsumed words.
func (h *FakeHandle) Queued() int {
	return h.queue.Len()
}

// Close closes the queue; blocked and later pushes fail with
// automaton.ErrFIFOClosed.
func (h *FakeHandle) Close() {
	h.queue.Close()
}

// FailPushes makes every later Push return err.
func (h *FakeHandle) FailPushes(err error) {
	h.mu.Lock()
	h.pushErr = err
	h.mu.Unlock()
}

// Running reports whether the handle is between Start and Stop.
func (h *FakeHandle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Counts returns the number of Start and Stop calls.
func (h *FakeHandle) Counts() (starts, stops int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, h.stops
}

// Pushed returns the number of words accepted.
func (h *FakeHandle) Pushed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pushed
}

// PushedAfterStop reports whether Push was ever called while stopped.
func (h *FakeHandle) PushedAfterStop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pushAfterStop
}

var _ automaton.Handle = (*FakeHandle)(nil)
