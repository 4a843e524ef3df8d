package selectrix

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/testutil"
)

func quiet() engine.Option {
	return engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTransmitter_SetChannel(t *testing.T) {
	tx := NewTransmitter(testutil.NewFakeHandle(4), Encoder{}, quiet())

	require.NoError(t, tx.SetChannel(5, 0x1AC))
	v, err := tx.Channel(5)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAC), v, "values are masked to 8 bits")

	for _, addr := range []int{-1, Channels, 200} {
		err := tx.SetChannel(addr, 1)
		assert.True(t, engine.IsAddressError(err), "address %d", addr)
	}
	_, err = tx.Channel(Channels)
	assert.True(t, engine.IsAddressError(err))

	err = tx.SetChannels(map[int]int{1: 2, 112: 3})
	assert.True(t, engine.IsAddressError(err))
	v, _ = tx.Channel(1)
	assert.Zero(t, v, "a rejected batch changes nothing")
}

func TestTransmitter_PowerDefaultsOn(t *testing.T) {
	tx := NewTransmitter(testutil.NewFakeHandle(4), Encoder{}, quiet())
	assert.True(t, tx.TrackPower())

	tx.SetTrackPower(false)
	table, power := tx.Snapshot()
	assert.False(t, power)
	assert.Equal(t, ChannelTable{}, table)
}

func TestTransmitter_BuildFrameUsesSnapshot(t *testing.T) {
	tx := NewTransmitter(testutil.NewFakeHandle(4), Encoder{}, quiet())
	require.NoError(t, tx.SetChannels(map[int]int{0: 0xAC, 17: 0x55, 50: 0x01, 111: 0xFF}))
	tx.SetTrackPower(false)

	got, err := tx.BuildFrame()
	require.NoError(t, err)
	want, err := Encoder{}.Build(mixedTable(), false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTransmitter_StreamsUpdates(t *testing.T) {
	h := testutil.NewFakeHandle(8)
	tx := NewTransmitter(h, Encoder{}, quiet())
	t.Cleanup(func() { _ = tx.Stop() })

	require.NoError(t, tx.Start(context.Background()))
	require.Eventually(t, func() bool {
		h.Pull(8)
		return tx.Stats().FramesStreamed > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, tx.SetChannel(0, 0xAC))

	var table ChannelTable
	table[0] = 0xAC
	want, err := Encoder{}.Build(&table, true)
	require.NoError(t, err)

	// pull until a complete frame with the new value has gone through
	var words []uint32
	require.Eventually(t, func() bool {
		words = append(words, h.Pull(8)...)
		for i := range words {
			if words[i] == want[0] && len(words)-i >= len(want) {
				assert.Equal(t, want, words[i:i+len(want)])
				return true
			}
		}
		return false
	}, 2*time.Second, 100*time.Microsecond)

	assert.Equal(t, int64(2), tx.Active().Generation)
	assert.Equal(t, engine.FrameDigest(want), tx.Stats().Digest)
}

func TestTransmitter_OnMachine(t *testing.T) {
	enc := Encoder{}
	h, err := testutil.NewSteppedHandle(enc.Profile(0, 1))
	require.NoError(t, err)

	tx, err := Open(h.Loader(), Pins{T0: 0, Data: 1}, enc, quiet())
	require.NoError(t, err)
	require.NoError(t, tx.SetChannel(0, 0xAC))
	require.NoError(t, tx.SetChannel(111, 0x5A))

	require.NoError(t, tx.Start(context.Background()))
	t.Cleanup(func() { _ = tx.Stop() })

	cyclesPerWord := uint64(automaton.SelectrixWordWidth * automaton.SelectrixCyclesPerBit)
	for i := 0; i < enc.WordsPerFrame(); i++ {
		require.True(t, h.Advance(cyclesPerWord, time.Second), "queue never filled before word %d", i)
	}
	assert.Zero(t, h.Stats().Stalls, "the streamer kept the queue fed")

	table, power := tx.Snapshot()
	bits := EncodeFrame(&table, power, AddressInverted)
	for k, bit := range bits {
		level := h.Trace.LevelAt(uint64(k*automaton.SelectrixCyclesPerBit) + 5)
		if !assert.Equal(t, bit == 1, level&0b10 != 0, "bit %d", k) {
			break
		}
	}

	require.NoError(t, tx.Stop())
	assert.Zero(t, h.Pins(), "pins idle after stop")
	assert.Equal(t, automaton.StateHalted, h.State())
}

func TestTransmitter_StopRightAfterStart(t *testing.T) {
	h, err := testutil.NewSteppedHandle(Encoder{}.Profile(0, 1))
	require.NoError(t, err)
	tx := NewTransmitter(h, Encoder{}, quiet())

	require.NoError(t, tx.Start(context.Background()))
	require.NoError(t, tx.Stop())

	assert.Zero(t, h.Pins())
	assert.Zero(t, h.FIFO().Len())
	assert.Equal(t, automaton.StateHalted, h.State())
}

func TestOpen_LoadError(t *testing.T) {
	loader := &automaton.SimLoader{}
	_, err := Open(loader, Pins{T0: 31, Data: 31}, Encoder{Variant: VariantDifferential}, quiet())
	assert.Error(t, err)
}

func TestTransmitter_BuiltMatchesHookFrame(t *testing.T) {
	h := testutil.NewFakeHandle(8)
	type seen struct {
		frame engine.Frame
		table ChannelTable
	}
	frames := make(chan seen, 4)

	var tx *Transmitter
	tx = NewTransmitter(h, Encoder{}, quiet(), engine.WithRebuildHook(func(f engine.Frame) {
		table, _ := tx.Built()
		frames <- seen{f, table}
	}))
	require.NoError(t, tx.SetChannel(3, 9))
	require.NoError(t, tx.Start(context.Background()))
	t.Cleanup(func() { _ = tx.Stop() })

	select {
	case s := <-frames:
		assert.Equal(t, uint8(9), s.table[3])
		want, err := Encoder{}.Build(&s.table, true)
		require.NoError(t, err)
		assert.Equal(t, engine.FrameDigest(want), s.frame.Digest)
	case <-time.After(time.Second):
		t.Fatal("no rebuild")
	}
}
