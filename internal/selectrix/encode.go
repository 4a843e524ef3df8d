package selectrix

import (
	"errors"
	"fmt"

	"github.com/roach88/railsig/internal/bitstream"
)

// Frame geometry of the SX1 bus.
const (
	Channels         = 112
	Blocks           = 16
	ChannelsPerBlock = Channels / Blocks
	ByteBits         = 12
	HeaderBits       = 12
	BlockBits        = HeaderBits + ChannelsPerBlock*ByteBits
	FrameBits        = Blocks * BlockBits
)

// ErrBlockRange is returned for a block index outside 0..15.
var ErrBlockRange = errors.New("selectrix: block index out of range 0..15")

// ChannelTable holds the 8-bit value of every bus address.
type ChannelTable [Channels]uint8

// AddressMode selects how the block index is sent in the header.
type AddressMode uint8

const (
	// AddressInverted sends NOT block. Receivers on the track signal expect
	// the inverted address.
	AddressInverted AddressMode = iota
	// AddressPlain sends the block index unchanged, as the two-pin bus sender
	// does.
	AddressPlain
)

func (m AddressMode) String() string {
	if m == AddressPlain {
		return "plain"
	}
	return "inverted"
}

// ParseAddressMode parses "inverted" or "plain".
func ParseAddressMode(s string) (AddressMode, error) {
	switch s {
	case "inverted", "":
		return AddressInverted, nil
	case "plain":
		return AddressPlain, nil
	}
	return 0, fmt.Errorf("selectrix: unknown address mode %q", s)
}

// EncodeByte stuffs a literal 1 after every two data bits, most significant
// bit first: 8 bits in, 12 bits out. Data bits are not inverted.
func EncodeByte(v uint8) bitstream.Stream {
	out := make(bitstream.Stream, 0, ByteBits)
	for shift := 6; shift >= 0; shift -= 2 {
		out = append(out,
			bitstream.Bit(v>>uint(shift+1)&1),
			bitstream.Bit(v>>uint(shift)&1),
			1,
		)
	}
	return out
}

// EncodeHeader encodes the 12-bit block header: the sync pattern 0001, the
// track power bit, a fixed 1, then the 4-bit block address as
// b3 b2 1 b1 b0 1.
func EncodeHeader(block int, power bool, addr AddressMode) (bitstream.Stream, error) {
	if block < 0 || block >= Blocks {
		return nil, fmt.Errorf("%w: %d", ErrBlockRange, block)
	}

	b := uint8(block)
	if addr == AddressInverted {
		b = ^b & 0x0F
	}
	var p bitstream.Bit
	if power {
		p = 1
	}

	return bitstream.Stream{
		0, 0, 0, 1,
		p, 1,
		bitstream.Bit(b>>3&1), bitstream.Bit(b>>2&1), 1,
		bitstream.Bit(b>>1&1), bitstream.Bit(b&1), 1,
	}, nil
}

// BlockAddresses returns the channel addresses carried by block, in
// transmission order: block, block+16, ..., block+96.
func BlockAddresses(block int) [ChannelsPerBlock]int {
	var addrs [ChannelsPerBlock]int
	for i := range addrs {
		addrs[i] = block + Blocks*i
	}
	return addrs
}

// EncodeBlock encodes the header of block followed by its seven channels:
// 96 bits.
func EncodeBlock(table *ChannelTable, power bool, block int, addr AddressMode) (bitstream.Stream, error) {
	out, err := EncodeHeader(block, power, addr)
	if err != nil {
		return nil, err
	}
	for _, a := range BlockAddresses(block) {
		out = append(out, EncodeByte(table[a])...)
	}
	return out, nil
}

// EncodeFrame encodes blocks 0..15 in order: 1536 bits. The result depends
// only on its arguments.
func EncodeFrame(table *ChannelTable, power bool, addr AddressMode) bitstream.Stream {
	out := make(bitstream.Stream, 0, FrameBits)
	for block := 0; block < Blocks; block++ {
		bits, err := EncodeBlock(table, power, block, addr)
		if err != nil {
			panic(err) // unreachable: block is in range
		}
		out = append(out, bits...)
	}
	return out
}
