package automaton

import "sync"

// Edge is one recorded pin change: from Cycle on, the pins read Pins.
type Edge struct {
	Cycle uint64
	Pins  uint32
}

// Pulse is a run of constant level on one pin.
type Pulse struct {
	Start  uint64
	Cycles uint64
	High   bool
}

// Trace is a Probe that records every pin change.
type Trace struct {
	mu    sync.Mutex
	edges []Edge
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Edge implements Probe.
func (t *Trace) Edge(cycle uint64, pins uint32) {
	t.mu.Lock()
	t.edges = append(t.edges, Edge{Cycle: cycle, Pins: pins})
	t.mu.Unlock()
}

// Edges returns a copy of the recorded changes in cycle order.
func (t *Trace) Edges() []Edge {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Edge(nil), t.edges...)
}

// Reset forgets every recorded change.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.edges = nil
	t.mu.Unlock()
}

// LevelAt returns the pins in effect at cycle. Pins read zero before the
// first recorded change.
func (t *Trace) LevelAt(cycle uint64) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pins uint32
	for _, e := range t.edges {
		if e.Cycle > cycle {
			break
		}
		pins = e.Pins
	}
	return pins
}

// Pulses returns the complete runs of one pin: each run starts and ends with
// a change of that pin. The run before the first change and the run still in
// progress are not included.
func (t *Trace) Pulses(pin int) []Pulse {
	t.mu.Lock()
	defer t.mu.Unlock()

	mask := uint32(1) << uint(pin)
	var (
		pulses  []Pulse
		level   bool
		started bool
		start   uint64
	)
	for _, e := range t.edges {
		high := e.Pins&mask != 0
		if high == level {
			continue
		}
		if started {
			pulses = append(pulses, Pulse{Start: start, Cycles: e.Cycle - start, High: level})
		}
		level = high
		start = e.Cycle
		started = true
	}
	return pulses
}
