package bitstream

import "fmt"

// Polarity is the voltage sign on a two-wire differential output.
type Polarity uint8

const (
	// Positive is the fixed starting polarity of every differential frame.
	// Receivers decode relative to it, so it must not change between rebuilds.
	Positive Polarity = iota
	// Negative is the inverted line state.
	Negative
)

// Symbol widths and values for the two-wire mapping. Exactly one of the two
// lines is driven high in every symbol.
const (
	SymbolBits           = 2
	SymbolPositive uint8 = 0b10
	SymbolNegative uint8 = 0b01
)

// Toggle returns the opposite polarity.
func (p Polarity) Toggle() Polarity {
	if p == Positive {
		return Negative
	}
	return Positive
}

// Symbol returns the 2-bit line pattern for p.
func (p Polarity) Symbol() uint8 {
	if p == Positive {
		return SymbolPositive
	}
	return SymbolNegative
}

func (p Polarity) String() string {
	if p == Positive {
		return "+"
	}
	return "-"
}

// ApplyPolarity walks bits in order carrying the polarity state: a 1 toggles
// it, a 0 holds it, and each bit is then emitted as the 2-bit symbol of the
// current polarity. It returns the symbol stream (2*len(bits) long) and the
// number of toggles.
//
// The walk is sequential; splitting it would lose the carried state.
func ApplyPolarity(bits Stream, start Polarity) (Stream, int) {
	out := make(Stream, 0, len(bits)*SymbolBits)
	p := start
	toggles := 0
	for _, b := range bits {
		if b != 0 {
			p = p.Toggle()
			toggles++
		}
		sym := p.Symbol()
		out = append(out, Bit(sym>>1), Bit(sym&1))
	}
	return out, toggles
}

// Polarities returns the polarity after each bit, useful when checking a
// symbol stream by eye.
func Polarities(bits Stream, start Polarity) []Polarity {
	out := make([]Polarity, len(bits))
	p := start
	for i, b := range bits {
		if b != 0 {
			p = p.Toggle()
		}
		out[i] = p
	}
	return out
}

// RemovePolarity reverses ApplyPolarity: a symbol whose polarity differs
// from the one before it (start, for the first) is a 1.
func RemovePolarity(symbols Stream, start Polarity) (Stream, error) {
	if len(symbols)%SymbolBits != 0 {
		return nil, fmt.Errorf("bitstream: %d symbol bits is not a whole number of symbols", len(symbols))
	}
	out := make(Stream, 0, len(symbols)/SymbolBits)
	p := start
	for i := 0; i < len(symbols); i += SymbolBits {
		var cur Polarity
		switch uint8(symbols[i])<<1 | uint8(symbols[i+1]) {
		case SymbolPositive:
			cur = Positive
		case SymbolNegative:
			cur = Negative
		default:
			return nil, fmt.Errorf("bitstream: invalid symbol %d%d at %d", symbols[i], symbols[i+1], i/SymbolBits)
		}
		if cur != p {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		p = cur
	}
	return out, nil
}
