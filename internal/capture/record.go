// Package capture runs a protocol program on a simulated automaton for a
// fixed number of cycles and keeps every pin change, for rendering as a WAV
// file or measuring pulse widths.
package capture

import (
	"errors"
	"fmt"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/engine"
)

// refillEvery is the step size between queue refills. Every built-in
// program spends far longer than this on one word, so a full queue never
// runs dry between refills.
const refillEvery = 32

// ErrEmptyFrame is returned when the source builds a frame with no words.
var ErrEmptyFrame = errors.New("capture: source built an empty frame")

// Recording is the pin history of one simulated run.
type Recording struct {
	Program string
	Config  automaton.Config
	Pins    []int
	Cycles  uint64
	Frame   *engine.Frame
	Trace   *automaton.Trace
	Stats   automaton.Stats
}

// Record builds one frame from src and feeds it to a fresh machine running
// p, repeating the frame, for the given number of cycles. The machine is
// stepped directly, so the recording is exact and reproducible.
func Record(p automaton.Profile, src engine.FrameSource, cycles uint64) (*Recording, error) {
	words, err := src.BuildFrame()
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyFrame
	}

	trace := automaton.NewTrace()
	m, err := automaton.NewMachine(p.Program, p.Config, automaton.WithProbe(trace))
	if err != nil {
		return nil, err
	}
	m.Enable()

	q := m.FIFO()
	next := 0
	for done := uint64(0); done < cycles; {
		for q.Len() < q.Cap() {
			if !q.TryPush(words[next]) {
				break
			}
			next = (next + 1) % len(words)
		}
		n := min(uint64(refillEvery), cycles-done)
		m.Step(n)
		done += n
	}

	return &Recording{
		Program: p.Program.Name,
		Config:  p.Config,
		Pins:    p.Config.OutputPins(),
		Cycles:  cycles,
		Frame:   engine.NewFrame(0, words),
		Trace:   trace,
		Stats:   m.Stats(),
	}, nil
}

// Levels samples the recording every step cycles and returns one row per
// sample, one column per output pin.
func (r *Recording) Levels(step uint64) [][]bool {
	if step == 0 {
		step = 1
	}
	edges := r.Trace.Edges()

	rows := make([][]bool, 0, r.Cycles/step+1)
	var pins uint32
	e := 0
	for c := uint64(0); c < r.Cycles; c += step {
		for e < len(edges) && edges[e].Cycle <= c {
			pins = edges[e].Pins
			e++
		}
		row := make([]bool, len(r.Pins))
		for i, p := range r.Pins {
			row[i] = pins&(1<<uint(p)) != 0
		}
		rows = append(rows, row)
	}
	return rows
}

// Micros converts a cycle count of this recording to microseconds.
func (r *Recording) Micros(cycles uint64) float64 {
	return r.Config.Micros(cycles)
}
