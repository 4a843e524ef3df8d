package dcc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/engine"
)

// Loco is the refreshed state of one decoder.
type Loco struct {
	Speed     int
	Forward   bool
	Functions [5]bool
}

// Encoding selects the packet framing.
type Encoding struct {
	// Railcom prefixes every packet with its bit count and opens a cutout
	// after it.
	Railcom bool
	// Preamble is the minimum preamble length; zero means DefaultPreamble.
	Preamble int
}

func (e Encoding) preamble() int {
	if e.Preamble == 0 {
		return DefaultPreamble
	}
	return e.Preamble
}

// Encode turns one packet into words for the selected program.
func (e Encoding) Encode(p Packet) ([]uint32, error) {
	if e.Railcom {
		return p.RailcomWords(e.preamble())
	}
	return p.Words(e.preamble())
}

// Profile returns the automaton program for the encoding.
func (e Encoding) Profile(pin, cutout int) automaton.Profile {
	if e.Railcom {
		return automaton.DCCRailcomProfile(pin, cutout)
	}
	return automaton.DCCProfile(pin)
}

// Station is a DCC command station. Each frame refreshes every known loco
// with a speed packet and a function packet, in address order, and ends with
// an idle packet. With no locos the frame is a single idle packet.
type Station struct {
	mu    sync.Mutex
	locos map[int]Loco

	encoding Encoding
	streamer *engine.Streamer
}

// NewStation creates a stopped station streaming to handle.
func NewStation(handle automaton.Handle, enc Encoding, opts ...engine.Option) *Station {
	s := &Station{
		locos:    make(map[int]Loco),
		encoding: enc,
	}
	s.streamer = engine.New(s, handle, opts...)
	return s
}

// OpenStation loads the encoding's program through loader.
func OpenStation(loader automaton.Loader, pin, cutout int, enc Encoding, opts ...engine.Option) (*Station, error) {
	handle, err := enc.Profile(pin, cutout).Load(loader)
	if err != nil {
		return nil, fmt.Errorf("load dcc program: %w", err)
	}
	return NewStation(handle, enc, opts...), nil
}

// SetLoco stores the state refreshed for addr.
func (s *Station) SetLoco(addr int, l Loco) error {
	if _, err := AddressBytes(addr); err != nil {
		return err
	}
	if l.Speed < 0 || l.Speed > MaxSpeed {
		return fmt.Errorf("dcc: speed %d out of range 0..%d", l.Speed, MaxSpeed)
	}

	s.mu.Lock()
	s.locos[addr] = l
	s.mu.Unlock()

	s.streamer.MarkDirty()
	return nil
}

// SetSpeed updates speed and direction of addr, keeping its functions.
func (s *Station) SetSpeed(addr, speed int, forward bool) error {
	l, _ := s.Loco(addr)
	l.Speed, l.Forward = speed, forward
	return s.SetLoco(addr, l)
}

// SetFunction switches function n (0..4) of addr.
func (s *Station) SetFunction(addr, n int, on bool) error {
	if n < 0 || n >= len(Loco{}.Functions) {
		return fmt.Errorf("dcc: function %d out of range 0..4", n)
	}
	l, _ := s.Loco(addr)
	l.Functions[n] = on
	return s.SetLoco(addr, l)
}

// Release stops refreshing addr.
func (s *Station) Release(addr int) {
	s.mu.Lock()
	delete(s.locos, addr)
	s.mu.Unlock()

	s.streamer.MarkDirty()
}

// Loco returns the stored state of addr.
func (s *Station) Loco(addr int) (Loco, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locos[addr]
	return l, ok
}

// Packets returns the packets of one refresh frame.
func (s *Station) Packets() ([]Packet, error) {
	s.mu.Lock()
	addrs := make([]int, 0, len(s.locos))
	for a := range s.locos {
		addrs = append(addrs, a)
	}
	snapshot := make(map[int]Loco, len(s.locos))
	for a, l := range s.locos {
		snapshot[a] = l
	}
	s.mu.Unlock()

	sort.Ints(addrs)
	packets := make([]Packet, 0, 2*len(addrs)+1)
	for _, a := range addrs {
		l := snapshot[a]
		sp, err := Speed128(a, l.Speed, l.Forward)
		if err != nil {
			return nil, err
		}
		fn, err := Functions(a, l.Functions)
		if err != nil {
			return nil, err
		}
		packets = append(packets, sp, fn)
	}
	return append(packets, Idle()), nil
}

// BuildFrame implements engine.FrameSource.
func (s *Station) BuildFrame() ([]uint32, error) {
	packets, err := s.Packets()
	if err != nil {
		return nil, err
	}
	var words []uint32
	for _, p := range packets {
		w, err := s.encoding.Encode(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p, err)
		}
		words = append(words, w...)
	}
	return words, nil
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
