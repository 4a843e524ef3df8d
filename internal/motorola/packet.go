// Package motorola encodes Märklin-Motorola (MM) trit packets for the
// motorola automaton program.
package motorola

import (
	"fmt"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/engine"
)

// Trit is one MM symbol, sent as two bits.
type Trit uint8

const (
	TritZero Trit = iota // 00
	TritOne              // 11
	TritOpen             // 10
)

// Bits returns the two-bit wire pattern.
func (t Trit) Bits() [2]bitstream.Bit {
	switch t {
	case TritOne:
		return [2]bitstream.Bit{1, 1}
	case TritOpen:
		return [2]bitstream.Bit{1, 0}
	}
	return [2]bitstream.Bit{0, 0}
}

func (t Trit) String() string {
	return [...]string{"0", "1", "open"}[t]
}

// Packet geometry.
const (
	Trits        = 9
	AddressTrits = 4
	MaxAddress   = 80
	MaxSpeed     = 14
	MaxPort      = 7
)

// SpeedReverse is the speed step decoders take as "change direction".
const SpeedReverse = 1

// Packet is one MM packet: four address trits, the function trit and four
// data trits.
type Packet struct {
	Address  int
	Function bool
	Data     [4]Trit
}

// Loco returns a locomotive packet. speed 0 stops, 1 reverses, 2..14 are
// running steps.
func Loco(addr, speed int, function bool) (Packet, error) {
	if err := checkAddress(addr); err != nil {
		return Packet{}, err
	}
	if speed < 0 || speed > MaxSpeed {
		return Packet{}, fmt.Errorf("motorola: speed %d out of range 0..%d", speed, MaxSpeed)
	}
	p := Packet{Address: addr, Function: function}
	for i := range p.Data {
		p.Data[i] = binaryTrit(speed >> uint(i) & 1)
	}
	return p, nil
}

// Accessory returns a solenoid packet for one of the eight outputs of a
// decoder.
func Accessory(addr, port int, on bool) (Packet, error) {
	if err := checkAddress(addr); err != nil {
		return Packet{}, err
	}
	if port < 0 || port > MaxPort {
		return Packet{}, fmt.Errorf("motorola: port %d out of range 0..%d", port, MaxPort)
	}
	p := Packet{Address: addr}
	for i := 0; i < 3; i++ {
		p.Data[i] = binaryTrit(port >> uint(i) & 1)
	}
	if on {
		p.Data[3] = TritOne
	}
	return p, nil
}

func checkAddress(addr int) error {
	if addr < 1 || addr > MaxAddress {
		return engine.NewAddressRangeError(addr, 1, MaxAddress)
	}
	return nil
}

func binaryTrit(b int) Trit {
	if b != 0 {
		return TritOne
	}
	return TritZero
}

// AddressDigits returns the base-3 digits of addr, least significant first;
// digit 2 is TritOpen. Address 80 is sent as all zero trits.
func AddressDigits(addr int) [AddressTrits]Trit {
	var out [AddressTrits]Trit
	n := addr % MaxAddress
	for i := range out {
		out[i] = Trit(n % 3)
		n /= 3
	}
	return out
}

// Trits returns the nine trits in transmission order.
func (p Packet) Trits() [Trits]Trit {
	var out [Trits]Trit
	a := AddressDigits(p.Address)
	copy(out[:], a[:])
	if p.Function {
		out[AddressTrits] = TritOne
	}
	copy(out[AddressTrits+1:], p.Data[:])
	return out
}

// Bits returns the 18 wire bits.
func (p Packet) Bits() bitstream.Stream {
	out := make(bitstream.Stream, 0, 2*Trits)
	for _, t := range p.Trits() {
		b := t.Bits()
		out = append(out, b[0], b[1])
	}
	return out
}

// Word packs the packet into one input word.
func (p Packet) Word() uint32 {
	return bitstream.MustPack(p.Bits(), automaton.MotorolaWordWidth, 1)[0]
}
