// Package mfx prepares bit payloads for the mfx and mfx_sync automaton
// programs.
//
// The mfx line code is differential: every bit starts with a polarity
// change and a one adds a second change mid-bit. Only the number of changes
// carries data, so the absolute line level is irrelevant.
package mfx

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/engine"
)

// Bit cell timing of the mfx program, in automaton cycles.
const (
	CyclesPerBit = 10
	startEdge    = 1
	midEdge      = 6
)

// MaxRun is the longest run of ones allowed on the wire before a stuffed 0.
const MaxRun = 8

// DefaultSyncRepeats is the number of half-sync patterns per sync.
const DefaultSyncRepeats = 2

// Stuff inserts a 0 after every run of MaxRun ones.
func Stuff(bits bitstream.Stream) bitstream.Stream {
	out := make(bitstream.Stream, 0, len(bits)+len(bits)/MaxRun)
	run := 0
	for _, b := range bits {
		out = append(out, b)
		if b == 0 {
			run = 0
			continue
		}
		run++
		if run == MaxRun {
			out = append(out, 0)
			run = 0
		}
	}
	return out
}

// Unstuff removes the 0 following every run of MaxRun ones.
func Unstuff(bits bitstream.Stream) bitstream.Stream {
	out := make(bitstream.Stream, 0, len(bits))
	run := 0
	for i := 0; i < len(bits); i++ {
		b := bits[i]
		out = append(out, b)
		if b == 0 {
			run = 0
			continue
		}
		run++
		if run == MaxRun {
			i++ // stuffed bit
			run = 0
		}
	}
	return out
}

// Words packs bits into 18-bit words for the mfx program. A trailing
// partial word is padded with zero bits, which go on the wire as zeros.
func Words(bits bitstream.Stream) []uint32 {
	return bitstream.MustPack(bits, automaton.MFXWordWidth, 1)
}

// SyncWord returns the count word that makes mfx_sync emit the half-sync
// pattern repeats times.
func SyncWord(repeats int) (uint32, error) {
	if repeats < 1 || repeats > 1<<automaton.MFXSyncCountWordWidth {
		return 0, fmt.Errorf("mfx: sync repeats %d out of range 1..%d", repeats, 1<<automaton.MFXSyncCountWordWidth)
	}
	return uint32(repeats - 1), nil
}

// Transitions returns the cycle offsets of the polarity changes the mfx
// program makes for bits, counted from the start of the first bit cell.
func Transitions(bits bitstream.Stream) []uint64 {
	out := make([]uint64, 0, len(bits)+bits.Ones())
	for i, b := range bits {
		cell := uint64(i * CyclesPerBit)
		out = append(out, cell+startEdge)
		if b != 0 {
			out = append(out, cell+midEdge)
		}
	}
	return out
}

// Sender streams one stuffed payload over and over.
type Sender struct {
	mu      sync.Mutex
	payload bitstream.Stream

	streamer *engine.Streamer
}

// NewSender creates a stopped sender streaming to handle.
func NewSender(handle automaton.Handle, opts ...engine.Option) *Sender {
	s := &Sender{}
	s.streamer = engine.New(s, handle, opts...)
	return s
}

// OpenSender loads the mfx program through loader.
func OpenSender(loader automaton.Loader, pin int, opts ...engine.Option) (*Sender, error) {
	handle, err := automaton.MFXProfile(pin).Load(loader)
	if err != nil {
		return nil, fmt.Errorf("load mfx program: %w", err)
	}
	return NewSender(handle, opts...), nil
}

// SetPayload replaces the payload. It is stuffed on the next rebuild.
func (s *Sender) SetPayload(bits bitstream.Stream) {
	s.mu.Lock()
	s.payload = append(bitstream.Stream(nil), bits...)
	s.mu.Unlock()

	s.streamer.MarkDirty()
}

// Wire returns the stuffed payload as it goes on the track, padding
// included.
func (s *Sender) Wire() bitstream.Stream {
	s.mu.Lock()
	bits := Stuff(s.payload)
	s.mu.Unlock()

	if rem := len(bits) % automaton.MFXWordWidth; rem != 0 {
		bits = append(bits, make(bitstream.Stream, automaton.MFXWordWidth-rem)...)
	}
	return bits
}

// BuildFrame implements engine.FrameSource. An empty payload builds an
// empty frame, which the streamer does not send.
func (s *Sender) BuildFrame() ([]uint32, error) {
	return Words(s.Wire()), nil
}

// Start starts the automaton and the streaming loop.
func (s *Sender) Start(ctx context.Context) error {
	return s.streamer.Start(ctx)
}

// Stop stops streaming and idles the track pin.
func (s *Sender) Stop() error {
	return s.streamer.Stop()
}

// Stats returns the streamer counters.
func (s *Sender) Stats() engine.Stats {
	return s.streamer.Stats()
}
