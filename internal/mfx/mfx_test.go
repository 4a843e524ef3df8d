package mfx

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/testutil"
)

func quiet() engine.Option {
	return engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStuff(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"1111111", "1111111"},
		{"11111111", "111111110"},
		{"111111111", "1111111101"},
		{"1111111101111111", "11111111001111111"},
		{"0101", "0101"},
	}
	for _, tt := range tests {
		in, err := bitstream.Parse(tt.in)
		require.NoError(t, err)

		got := Stuff(in)
		assert.Equal(t, tt.want, got.String(), "stuff %q", tt.in)
		assert.Equal(t, tt.in, Unstuff(got).String(), "unstuff %q", tt.want)
	}
}

func TestStuff_NoLongRuns(t *testing.T) {
	bits := make(bitstream.Stream, 100)
	for i := range bits {
		bits[i] = 1
	}
	run := 0
	for _, b := range Stuff(bits) {
		if b == 1 {
			run++
			require.LessOrEqual(t, run, MaxRun)
		} else {
			run = 0
		}
	}
}

func TestWords(t *testing.T) {
	bits, _ := bitstream.Parse("10110")
	assert.Equal(t, []uint32{0b10110 << 13}, Words(bits))
}

func TestSyncWord(t *testing.T) {
	w, err := SyncWord(DefaultSyncRepeats)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), w)

	_, err = SyncWord(0)
	assert.Error(t, err)
	_, err = SyncWord(17)
	assert.Error(t, err)
}

func TestTransitions(t *testing.T) {
	bits, _ := bitstream.Parse("101")
	assert.Equal(t, []uint64{1, 6, 11, 21, 26}, Transitions(bits))
}

func TestSender_EmptyPayload(t *testing.T) {
	s := NewSender(testutil.NewFakeHandle(8), quiet())
	words, err := s.BuildFrame()
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestSender_OnMachine(t *testing.T) {
	h, err := testutil.NewSteppedHandle(automaton.MFXProfile(0))
	require.NoError(t, err)

	s, err := OpenSender(h.Loader(), 0, quiet())
	require.NoError(t, err)
	payload, _ := bitstream.Parse("1011111111100101")
	s.SetPayload(payload)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	wire := s.Wire()
	require.Len(t, wire, automaton.MFXWordWidth)

	// one word per step keeps the queue ahead of the program
	cyclesPerWord := uint64(CyclesPerBit * automaton.MFXWordWidth)
	require.True(t, h.Advance(cyclesPerWord, time.Second))

	var got []uint64
	for _, e := range h.Trace.Edges() {
		got = append(got, e.Cycle)
	}
	want := Transitions(wire)
	require.GreaterOrEqual(t, len(got), len(want))
	assert.Equal(t, want, got[:len(want)])

	require.NoError(t, s.Stop())
	assert.False(t, h.Pin(0))
}

func TestSyncOnMachine(t *testing.T) {
	h, err := testutil.NewSteppedHandle(automaton.MFXSyncProfile(0))
	require.NoError(t, err)
	w, err := SyncWord(DefaultSyncRepeats)
	require.NoError(t, err)
	require.NoError(t, h.Push(context.Background(), w))
	require.NoError(t, h.Start())

	h.Step(1 + 2*21)

	var widths []uint64
	for _, p := range h.Trace.Pulses(0) {
		widths = append(widths, p.Cycles)
	}
	assert.Equal(t, []uint64{8, 4, 9, 8, 4}, widths)
}
