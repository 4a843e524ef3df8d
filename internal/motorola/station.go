package motorola

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/engine"
)

// Repeats is how often each packet is sent back to back; decoders act only
// on two identical packets in a row.
const Repeats = 2

// LocoState is the refreshed state of one decoder.
type LocoState struct {
	Speed    int
	Function bool
}

// Station is an MM command station. Each frame sends every known loco
// packet twice, in address order. With no locos it sends the idle packet
// (address 80, all zero).
type Station struct {
	mu    sync.Mutex
	locos map[int]LocoState

	accessory bool
	streamer  *engine.Streamer
}

// NewStation creates a stopped station streaming to handle.
func NewStation(handle automaton.Handle, opts ...engine.Option) *Station {
	s := &Station{locos: make(map[int]LocoState)}
	s.streamer = engine.New(s, handle, opts...)
	return s
}

// OpenStation loads the motorola program at the loco or accessory rate.
func OpenStation(loader automaton.Loader, pin int, accessory bool, opts ...engine.Option) (*Station, error) {
	handle, err := automaton.MotorolaProfile(pin, accessory).Load(loader)
	if err != nil {
		return nil, fmt.Errorf("load motorola program: %w", err)
	}
	s := NewStation(handle, opts...)
	s.accessory = accessory
	return s, nil
}

// SetLoco stores the state refreshed for addr.
func (s *Station) SetLoco(addr int, st LocoState) error {
	if _, err := Loco(addr, st.Speed, st.Function); err != nil {
		return err
	}

	s.mu.Lock()
	s.locos[addr] = st
	s.mu.Unlock()

	s.streamer.MarkDirty()
	return nil
}

// Release stops refreshing addr.
func (s *Station) Release(addr int) {
	s.mu.Lock()
	delete(s.locos, addr)
	s.mu.Unlock()

	s.streamer.MarkDirty()
}

// Packets returns the distinct packets of one frame, before repetition.
func (s *Station) Packets() []Packet {
	s.mu.Lock()
	addrs := make([]int, 0, len(s.locos))
	for a := range s.locos {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	packets := make([]Packet, 0, len(addrs))
	for _, a := range addrs {
		st := s.locos[a]
		// validated by SetLoco
		p, _ := Loco(a, st.Speed, st.Function)
		packets = append(packets, p)
	}
	s.mu.Unlock()

	if len(packets) == 0 {
		packets = append(packets, Packet{Address: MaxAddress})
	}
	return packets
}

// BuildFrame implements engine.FrameSource.
func (s *Station) BuildFrame() ([]uint32, error) {
	packets := s.Packets()
	words := make([]uint32, 0, Repeats*len(packets))
	for _, p := range packets {
		w := p.Word()
		for i := 0; i < Repeats; i++ {
			words = append(words, w)
		}
	}
	return words, nil
}

// Accessory reports whether the station runs at the accessory rate.
func (s *Station) Accessory() bool {
	return s.accessory
}

// Start starts the automaton and the refresh loop.
func (s *Station) Start(ctx context.Context) error {
	return s.streamer.Start(ctx)
}

// Stop stops refreshing and idles the track pin.
func (s *Station) Stop() error {
	return s.streamer.Stop()
}

// Stats returns the streamer counters.
func (s *Station) Stats() engine.Stats {
	return s.streamer.Stats()
}
