// Package bitstream holds the intermediate bit sequences produced by the
// protocol encoders and packs them into the fixed-width words consumed by the
// timing automaton.
//
// Ordering is MSB-first throughout: the first bit of a chunk lands in the most
// significant position of its word. The automaton shifts words out in that
// order, so a reversed packing produces a different (invalid) track signal
// with no visible error.
package bitstream

import (
	"fmt"
	"strings"
)

// Bit is a single transmitted bit. Only 0 and 1 are meaningful.
type Bit uint8

// Stream is an ordered bit sequence. It only exists for the duration of one
// frame rebuild.
type Stream []Bit

// FromBits builds a Stream from integer literals. Any non-zero value is a 1.
func FromBits(bits ...int) Stream {
	s := make(Stream, len(bits))
	for i, b := range bits {
		if b != 0 {
			s[i] = 1
		}
	}
	return s
}

// FromUint appends the low n bits of v, most significant first.
func FromUint(v uint32, n int) Stream {
	s := make(Stream, n)
	for i := 0; i < n; i++ {
		s[i] = Bit((v >> uint(n-1-i)) & 1)
	}
	return s
}

// Append returns s with the other streams appended.
func (s Stream) Append(others ...Stream) Stream {
	for _, o := range others {
		s = append(s, o...)
	}
	return s
}

// Uint folds the stream into an integer, first bit most significant.
// Streams longer than 32 bits keep only the last 32.
func (s Stream) Uint() uint32 {
	var v uint32
	for _, b := range s {
		v = v<<1 | uint32(b&1)
	}
	return v
}

// Ones counts the set bits.
func (s Stream) Ones() int {
	n := 0
	for _, b := range s {
		if b != 0 {
			n++
		}
	}
	return n
}

// Equal reports whether both streams hold the same bits.
func (s Stream) Equal(o Stream) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the stream as 0/1 characters.
func (s Stream) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, bit := range s {
		if bit != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Parse reads a 0/1 string. Spaces and underscores are ignored so that
// grouped literals ("0001 1 1") stay readable in tests and scenario files.
func Parse(text string) (Stream, error) {
	s := make(Stream, 0, len(text))
	for i, r := range text {
		switch r {
		case '0':
			s = append(s, 0)
		case '1':
			s = append(s, 1)
		case ' ', '_', '\t':
		default:
			return nil, fmt.Errorf("bitstream: invalid character %q at offset %d", r, i)
		}
	}
	return s, nil
}
