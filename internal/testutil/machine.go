package testutil

import (
	"time"

	"github.com/roach88/railsig/internal/automaton"
)

// SteppedHandle is a simulated machine that only advances when the test
// steps it. Start arms the machine instead of pacing it against the wall
// clock, so pin timing is exact regardless of scheduler load.
type SteppedHandle struct {
	*automaton.Machine
	Trace *automaton.Trace
}

// NewSteppedHandle loads p into a machine with a trace attached.
func NewSteppedHandle(p automaton.Profile) (*SteppedHandle, error) {
	trace := automaton.NewTrace()
	m, err := automaton.NewMachine(p.Program, p.Config, automaton.WithProbe(trace))
	if err != nil {
		return nil, err
	}
	return &SteppedHandle{Machine: m, Trace: trace}, nil
}

// Start implements automaton.Handle.
func (h *SteppedHandle) Start() error {
	h.Enable()
	return nil
}

// Advance waits until the producer has filled the queue, then steps n
// cycles. It reports false if the queue did not fill within timeout. As long
// as n cycles consume fewer words than the queue holds, the machine never
// stalls.
func (h *SteppedHandle) Advance(n uint64, timeout time.Duration) bool {
	q := h.FIFO()
	deadline := time.Now().Add(timeout)
	for q.Len() < q.Cap() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Microsecond)
	}
	h.Step(n)
	return true
}

// Loader returns an automaton.Loader that always hands out h.
func (h *SteppedHandle) Loader() automaton.Loader {
	return steppedLoader{h}
}

type steppedLoader struct{ h *SteppedHandle }

func (l steppedLoader) Load(*automaton.Program, automaton.Config) (automaton.Handle, error) {
	return l.h, nil
}

var _ automaton.Handle = (*SteppedHandle)(nil)
