package config

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/dcc"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/mfx"
	"github.com/roach88/railsig/internal/motorola"
	"github.com/roach88/railsig/internal/selectrix"
)

// Encoder returns the selectrix encoder settings.
func (s Selectrix) Encoder() (selectrix.Encoder, error) {
	variant, err := selectrix.ParseVariant(s.Variant)
	if err != nil {
		return selectrix.Encoder{}, err
	}
	addr, err := selectrix.ParseAddressMode(s.Address)
	if err != nil {
		return selectrix.Encoder{}, err
	}
	return selectrix.Encoder{Variant: variant, Address: addr, StartPolarity: bitstream.Positive}, nil
}

// SXPins returns the configured bus lines.
func (s Selectrix) SXPins() selectrix.Pins {
	return selectrix.Pins{T0: *s.Pins.T0, Data: *s.Pins.Data}
}

// Apply loads the configured channels and power flag into t.
func (s Selectrix) Apply(t *selectrix.Transmitter) error {
	if err := t.SetChannels(s.Channels); err != nil {
		return err
	}
	t.SetTrackPower(*s.Power)
	return nil
}

// Encoding returns the DCC packet framing.
func (d DCC) Encoding() dcc.Encoding {
	return dcc.Encoding{Railcom: d.Railcom, Preamble: d.Preamble}
}

// Apply loads the configured locos into st.
func (d DCC) Apply(st *dcc.Station) error {
	for _, l := range d.Locos {
		loco := dcc.Loco{Speed: l.Speed, Forward: l.Forward == nil || *l.Forward}
		for _, f := range l.Functions {
			loco.Functions[f] = true
		}
		if err := st.SetLoco(l.Address, loco); err != nil {
			return fmt.Errorf("dcc loco %d: %w", l.Address, err)
		}
	}
	return nil
}

// Apply loads the configured locos into st.
func (m Motorola) Apply(st *motorola.Station) error {
	for _, l := range m.Locos {
		if err := st.SetLoco(l.Address, motorola.LocoState{Speed: l.Speed, Function: l.Function}); err != nil {
			return fmt.Errorf("motorola loco %d: %w", l.Address, err)
		}
	}
	return nil
}

// Bits parses the payload.
func (m MFX) Bits() (bitstream.Stream, error) {
	return bitstream.Parse(m.Payload)
}

// Profile returns the automaton program and pins of the configured
// protocol.
func (c *Config) Profile() (automaton.Profile, error) {
	switch c.Protocol {
	case ProtocolSelectrix:
		enc, err := c.Selectrix.Encoder()
		if err != nil {
			return automaton.Profile{}, err
		}
		pins := c.Selectrix.SXPins()
		return enc.Profile(pins.T0, pins.Data), nil
	case ProtocolDCC:
		return c.DCC.Encoding().Profile(c.DCC.Pin, *c.DCC.Cutout), nil
	case ProtocolMotorola:
		return automaton.MotorolaProfile(c.Motorola.Pin, c.Motorola.Accessory), nil
	case ProtocolMFX:
		return automaton.MFXProfile(c.MFX.Pin), nil
	}
	return automaton.Profile{}, fmt.Errorf("unknown protocol %q", c.Protocol)
}

// Station is the streaming surface shared by every protocol.
type Station interface {
	engine.FrameSource
	Start(ctx context.Context) error
	Stop() error
	Stats() engine.Stats
}

// Sources holds the station built for the configured protocol. Exactly one
// field is set.
type Sources struct {
	Selectrix *selectrix.Transmitter
	DCC       *dcc.Station
	Motorola  *motorola.Station
	MFX       *mfx.Sender
}

// Open loads the configured protocol through loader and applies the
// configured state.
func (c *Config) Open(loader automaton.Loader, opts ...engine.Option) (*Sources, error) {
	var src Sources
	switch c.Protocol {
	case ProtocolSelectrix:
		enc, err := c.Selectrix.Encoder()
		if err != nil {
			return nil, err
		}
		t, err := selectrix.Open(loader, c.Selectrix.SXPins(), enc, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Selectrix.Apply(t); err != nil {
			return nil, err
		}
		src.Selectrix = t
	case ProtocolDCC:
		st, err := dcc.OpenStation(loader, c.DCC.Pin, *c.DCC.Cutout, c.DCC.Encoding(), opts...)
		if err != nil {
			return nil, err
		}
		if err := c.DCC.Apply(st); err != nil {
			return nil, err
		}
		src.DCC = st
	case ProtocolMotorola:
		st, err := motorola.OpenStation(loader, c.Motorola.Pin, c.Motorola.Accessory, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Motorola.Apply(st); err != nil {
			return nil, err
		}
		src.Motorola = st
	case ProtocolMFX:
		bits, err := c.MFX.Bits()
		if err != nil {
			return nil, err
		}
		s, err := mfx.OpenSender(loader, c.MFX.Pin, opts...)
		if err != nil {
			return nil, err
		}
		s.SetPayload(bits)
		src.MFX = s
	default:
		return nil, fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	return &src, nil
}

// Station returns the station that was opened.
func (s *Sources) Station() Station {
	switch {
	case s.Selectrix != nil:
		return s.Selectrix
	case s.DCC != nil:
		return s.DCC
	case s.Motorola != nil:
		return s.Motorola
	}
	return s.MFX
}

// LabelMap returns the channel labels keyed by decimal address, the form
// stored with journal sessions.
func (s Selectrix) LabelMap() map[string]string {
	out := make(map[string]string, len(s.Labels))
	for a, l := range s.Labels {
		out[strconv.Itoa(a)] = l
	}
	return out
}
