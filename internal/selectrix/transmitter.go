package selectrix

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/engine"
)

// Pins assigns the bus lines. For the differential variant the symbol pair
// uses Data and Data+1.
type Pins struct {
	T0   int
	Data int
}

// Transmitter is an SX1 command station: a channel table and a track power
// flag, streamed continuously to the automaton.
//
// Mutators write under a short lock and mark the streamer dirty; they never
// wait for the rebuild. The streamer snapshots the whole table on each
// rebuild, so no per-channel locking is needed.
type Transmitter struct {
	mu    sync.Mutex
	table ChannelTable
	power bool

	// state of the last successful build, read by the rebuild hook
	built      ChannelTable
	builtPower bool

	encoder  Encoder
	streamer *engine.Streamer
}

// NewTransmitter creates a stopped transmitter streaming to handle. Track
// power starts on.
func NewTransmitter(handle automaton.Handle, enc Encoder, opts ...engine.Option) *Transmitter {
	t := &Transmitter{
		power:   true,
		encoder: enc,
	}
	t.streamer = engine.New(t, handle, opts...)
	return t
}

// Open loads the encoder's automaton profile through loader and returns a
// transmitter bound to it.
func Open(loader automaton.Loader, pins Pins, enc Encoder, opts ...engine.Option) (*Transmitter, error) {
	handle, err := enc.Profile(pins.T0, pins.Data).Load(loader)
	if err != nil {
		return nil, fmt.Errorf("load selectrix program: %w", err)
	}
	return NewTransmitter(handle, enc, opts...), nil
}

// SetChannel sets the value of one bus address. Values are masked to 8 bits;
// an address outside 0..111 is rejected.
func (t *Transmitter) SetChannel(addr, value int) error {
	if addr < 0 || addr >= Channels {
		return engine.NewAddressError(addr, Channels)
	}

	t.mu.Lock()
	t.table[addr] = uint8(value & 0xFF)
	t.mu.Unlock()

	t.streamer.MarkDirty()
	return nil
}

// SetChannels applies several channel writes with a single rebuild request.
func (t *Transmitter) SetChannels(values map[int]int) error {
	for addr := range values {
		if addr < 0 || addr >= Channels {
			return engine.NewAddressError(addr, Channels)
		}
	}

	t.mu.Lock()
	for addr, v := range values {
		t.table[addr] = uint8(v & 0xFF)
	}
	t.mu.Unlock()

	t.streamer.MarkDirty()
	return nil
}

// SetTrackPower sets the power bit sent in every block header.
func (t *Transmitter) SetTrackPower(on bool) {
	t.mu.Lock()
	t.power = on
	t.mu.Unlock()

	t.streamer.MarkDirty()
}

// Channel returns the stored value of addr.
func (t *Transmitter) Channel(addr int) (uint8, error) {
	if addr < 0 || addr >= Channels {
		return 0, engine.NewAddressError(addr, Channels)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.table[addr], nil
}

// TrackPower reports the power bit.
func (t *Transmitter) TrackPower() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.power
}

// Snapshot returns a copy of the table and the power bit.
func (t *Transmitter) Snapshot() (ChannelTable, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.table, t.power
}

// BuildFrame implements engine.FrameSource. Encoding runs on a snapshot,
// outside the lock.
func (t *Transmitter) BuildFrame() ([]uint32, error) {
	table, power := t.Snapshot()
	words, err := t.encoder.Build(&table, power)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.built, t.builtPower = table, power
	t.mu.Unlock()
	return words, nil
}

// Built returns the table and power bit the active frame was built from. A
// rebuild hook sees the state of the frame it receives.
func (t *Transmitter) Built() (ChannelTable, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.built, t.builtPower
}

// Encoder returns the encoder settings.
func (t *Transmitter) Encoder() Encoder {
	return t.encoder
}

// Start starts the automaton and the streaming loop.
func (t *Transmitter) Start(ctx context.Context) error {
	return t.streamer.Start(ctx)
}

// Stop stops streaming, then halts the automaton with its pins idle.
func (t *Transmitter) Stop() error {
	return t.streamer.Stop()
}

// Stats returns the streamer counters.
func (t *Transmitter) Stats() engine.Stats {
	return t.streamer.Stats()
}

// Active returns the frame being streamed, or nil before the first rebuild.
func (t *Transmitter) Active() *engine.Frame {
	return t.streamer.Active()
}

// Done is closed when the streaming loop exits.
func (t *Transmitter) Done() <-chan struct{} {
	return t.streamer.Done()
}

// Err returns the error that ended the streaming loop, if any.
func (t *Transmitter) Err() error {
	return t.streamer.Err()
}
