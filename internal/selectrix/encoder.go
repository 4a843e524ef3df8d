package selectrix

import (
	"fmt"
	"strings"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
)

// Variant selects the output line format.
type Variant uint8

const (
	// VariantT0T1 drives a clock line (T0) and one data line (T1), one bit per
	// cell: 48 words of 32 bits per frame.
	VariantT0T1 Variant = iota
	// VariantDifferential maps the frame through the polarity walk and drives
	// a 2-bit symbol per cell onto two data lines: 96 words per frame.
	VariantDifferential
)

func (v Variant) String() string {
	if v == VariantDifferential {
		return "differential"
	}
	return "t0t1"
}

// ParseVariant parses "t0t1" or "differential".
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "t0t1", "":
		return VariantT0T1, nil
	case "differential":
		return VariantDifferential, nil
	}
	return 0, fmt.Errorf("selectrix: unknown variant %q", s)
}

// Encoder turns a channel table into automaton words.
//
// The zero value is the T0/T1 variant with inverted addresses. StartPolarity
// only matters for the differential variant; it is applied unchanged on every
// rebuild.
type Encoder struct {
	Variant       Variant
	Address       AddressMode
	StartPolarity bitstream.Polarity
}

// Build encodes and packs one frame.
func (e Encoder) Build(table *ChannelTable, power bool) ([]uint32, error) {
	bits := EncodeFrame(table, power, e.Address)

	switch e.Variant {
	case VariantT0T1:
		return bitstream.Pack(bits, automaton.SelectrixWordWidth, 1)
	case VariantDifferential:
		symbols, _ := bitstream.ApplyPolarity(bits, e.StartPolarity)
		return bitstream.Pack(symbols, automaton.SelectrixWordWidth, bitstream.SymbolBits)
	default:
		return nil, fmt.Errorf("selectrix: unknown variant %d", e.Variant)
	}
}

// Bits recovers the frame bit stream from built words. It checks the
// packing only; the bits are not interpreted.
func (e Encoder) Bits(words []uint32) (bitstream.Stream, error) {
	switch e.Variant {
	case VariantT0T1:
		return bitstream.Unpack(words, automaton.SelectrixWordWidth, 1)
	case VariantDifferential:
		symbols, err := bitstream.Unpack(words, automaton.SelectrixWordWidth, bitstream.SymbolBits)
		if err != nil {
			return nil, err
		}
		return bitstream.RemovePolarity(symbols, e.StartPolarity)
	}
	return nil, fmt.Errorf("selectrix: unknown variant %d", e.Variant)
}

// WordsPerBlock is the number of words carrying one 96-bit block.
func (e Encoder) WordsPerBlock() int {
	if e.Variant == VariantDifferential {
		return BlockBits * bitstream.SymbolBits / automaton.SelectrixWordWidth
	}
	return BlockBits / automaton.SelectrixWordWidth
}

// WordsPerFrame is the number of words in a built frame.
func (e Encoder) WordsPerFrame() int {
	return Blocks * e.WordsPerBlock()
}

// Profile returns the automaton program and configuration for the variant,
// with the clock on pin t0 and data starting at pin data.
func (e Encoder) Profile(t0, data int) automaton.Profile {
	if e.Variant == VariantDifferential {
		return automaton.SelectrixDifferentialProfile(t0, data)
	}
	return automaton.SelectrixProfile(t0, data)
}

// FormatFrame renders frame words one block per line:
//
//	block 00: 1ff24924 92492492 49249249
func FormatFrame(words []uint32, wordsPerBlock int) string {
	var b strings.Builder
	for i := 0; i < len(words); i += wordsPerBlock {
		fmt.Fprintf(&b, "block %02d:", i/wordsPerBlock)
		end := i + wordsPerBlock
		if end > len(words) {
			end = len(words)
		}
		for _, w := range words[i:end] {
			fmt.Fprintf(&b, " %08x", w)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
