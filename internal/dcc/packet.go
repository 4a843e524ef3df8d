// Package dcc encodes NMRA DCC packets into words for the dcc and
// dcc_railcom automaton programs, and runs a refresh-cycle command station
// on top of the streamer.
package dcc

import (
	"errors"
	"fmt"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/engine"
)

// Address limits.
const (
	MaxShortAddress = 127
	MaxLongAddress  = 10239
)

// Preamble lengths in one bits. DefaultPreamble fills the first two 9-bit
// words exactly: 17 ones, then the packet start bit.
const (
	MinPreamble     = 14
	DefaultPreamble = 17
)

// MaxSpeed is the highest user speed step in 128-step mode.
const MaxSpeed = 126

// ErrEmptyPacket is returned when encoding a packet without bytes.
var ErrEmptyPacket = errors.New("dcc: empty packet")

// Packet is the address and instruction bytes of one DCC packet. The error
// detection byte is appended on encoding.
type Packet []byte

// AddressBytes encodes a locomotive address: one byte for 1..127, two bytes
// with the 11 prefix for 128..10239.
func AddressBytes(addr int) ([]byte, error) {
	switch {
	case addr >= 1 && addr <= MaxShortAddress:
		return []byte{byte(addr)}, nil
	case addr > MaxShortAddress && addr <= MaxLongAddress:
		return []byte{0xC0 | byte(addr>>8), byte(addr)}, nil
	}
	return nil, engine.NewAddressRangeError(addr, 1, MaxLongAddress)
}

// Idle returns the idle packet.
func Idle() Packet {
	return Packet{0xFF, 0x00}
}

// Reset returns the broadcast reset packet.
func Reset() Packet {
	return Packet{0x00, 0x00}
}

// Speed128 returns an advanced-operations speed packet. speed is 0 (stop)
// to 126; on the wire it becomes step 0 or 2..127, step 1 being emergency
// stop.
func Speed128(addr, speed int, forward bool) (Packet, error) {
	if speed < 0 || speed > MaxSpeed {
		return nil, fmt.Errorf("dcc: speed %d out of range 0..%d", speed, MaxSpeed)
	}
	step := byte(0)
	if speed > 0 {
		step = byte(speed + 1)
	}
	return speedPacket(addr, step, forward)
}

// EmergencyStop returns a 128-step packet with the emergency stop step.
func EmergencyStop(addr int, forward bool) (Packet, error) {
	return speedPacket(addr, 1, forward)
}

func speedPacket(addr int, step byte, forward bool) (Packet, error) {
	p, err := AddressBytes(addr)
	if err != nil {
		return nil, err
	}
	if forward {
		step |= 0x80
	}
	return append(p, 0x3F, step), nil
}

// Functions returns a function group one packet for F0..F4.
func Functions(addr int, f [5]bool) (Packet, error) {
	p, err := AddressBytes(addr)
	if err != nil {
		return nil, err
	}
	ins := byte(0x80)
	if f[0] {
		ins |= 0x10
	}
	for i := 1; i <= 4; i++ {
		if f[i] {
			ins |= 1 << uint(i-1)
		}
	}
	return append(p, ins), nil
}

// Checksum is the XOR of every packet byte.
func (p Packet) Checksum() byte {
	var c byte
	for _, b := range p {
		c ^= b
	}
	return c
}

// Bits encodes the packet: preamble ones, then each byte and the checksum
// preceded by a 0 start bit, then the end bit 1.
func (p Packet) Bits(preamble int) (bitstream.Stream, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPacket
	}
	if preamble < MinPreamble {
		return nil, fmt.Errorf("dcc: preamble %d shorter than %d", preamble, MinPreamble)
	}

	out := make(bitstream.Stream, 0, preamble+9*(len(p)+1)+1)
	for i := 0; i < preamble; i++ {
		out = append(out, 1)
	}
	for _, b := range append(append([]byte(nil), p...), p.Checksum()) {
		out = append(out, 0)
		out = append(out, bitstream.FromUint(uint32(b), 8)...)
	}
	return append(out, 1), nil
}

// alignedPreamble returns the shortest preamble of at least n ones that
// makes the packet a whole number of 9-bit words. Every packet is
// preamble + 9k + 1 bits long.
func alignedPreamble(n int) int {
	for (n+1)%automaton.DCCWordWidth != 0 {
		n++
	}
	return n
}

// Words encodes the packet for the dcc program. The preamble is lengthened
// until the packet fills whole words, so no padding bit reaches the track.
func (p Packet) Words(preamble int) ([]uint32, error) {
	bits, err := p.Bits(alignedPreamble(preamble))
	if err != nil {
		return nil, err
	}
	return bitstream.Pack(bits, automaton.DCCWordWidth, 1)
}

// RailcomWords encodes the packet for the dcc_railcom program: a count word
// holding the number of bits minus one, then the packet words.
func (p Packet) RailcomWords(preamble int) ([]uint32, error) {
	words, err := p.Words(preamble)
	if err != nil {
		return nil, err
	}
	count := uint32(len(words)*automaton.DCCWordWidth - 1)
	if count>>automaton.DCCRailcomCountWordWidth != 0 {
		return nil, fmt.Errorf("dcc: %d bits do not fit the count word", count+1)
	}
	return append([]uint32{count}, words...), nil
}

// String renders the packet bytes and checksum in hex.
func (p Packet) String() string {
	return fmt.Sprintf("% x [%02x]", []byte(p), p.Checksum())
}
