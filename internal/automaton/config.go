package automaton

import (
	"fmt"
	"time"
)

// ShiftDir is the order in which bits leave the output shift register.
type ShiftDir uint8

const (
	// MSBFirst shifts the most significant bit of each word out first. All
	// track protocols here use it.
	MSBFirst ShiftDir = iota
	// LSBFirst shifts bit 0 out first.
	LSBFirst
)

func (d ShiftDir) String() string {
	if d == LSBFirst {
		return "lsb-first"
	}
	return "msb-first"
}

// Join selects how the coprocessor's queue storage is split.
type Join uint8

const (
	// JoinNone keeps separate input and output queues.
	JoinNone Join = iota
	// JoinTX gives all queue storage to the input direction.
	JoinTX
)

// Queue depths in words.
const (
	FIFODepth       = 4
	FIFODepthJoined = 8
)

// Config is the load-time configuration of a machine: pin groups, input word
// format and clock rate. Pins are plain GPIO numbers 0..31; assigning them is
// the caller's business.
type Config struct {
	// Frequency is the machine cycle rate in Hz.
	Frequency float64

	OutBase, OutCount         int
	SetBase, SetCount         int
	SideSetBase, SideSetCount int

	// WordWidth is the number of meaningful bits in each pushed word. Words
	// are right aligned; the first bit sent is bit WordWidth-1 with MSBFirst.
	WordWidth int
	ShiftDir  ShiftDir

	// Autopull refills the shift register from the queue once PullThreshold
	// bits have been shifted out.
	Autopull      bool
	PullThreshold int

	Join Join
}

// Validate checks field ranges. It does not check the config against a
// program; Load does that.
func (c Config) Validate() error {
	if c.Frequency <= 0 {
		return &ConfigError{Field: "Frequency", Message: fmt.Sprintf("must be positive, got %v", c.Frequency)}
	}
	if c.WordWidth < 1 || c.WordWidth > 32 {
		return &ConfigError{Field: "WordWidth", Message: fmt.Sprintf("%d out of range 1..32", c.WordWidth)}
	}
	if c.Autopull && (c.PullThreshold < 1 || c.PullThreshold > c.WordWidth) {
		return &ConfigError{Field: "PullThreshold", Message: fmt.Sprintf("%d out of range 1..%d", c.PullThreshold, c.WordWidth)}
	}
	if !c.Autopull {
		return &ConfigError{Field: "Autopull", Message: "programs here have no explicit pull; autopull is required"}
	}
	groups := []struct {
		name               string
		base, count, limit int
	}{
		{"Out", c.OutBase, c.OutCount, 32},
		{"Set", c.SetBase, c.SetCount, 5},
		{"SideSet", c.SideSetBase, c.SideSetCount, delayFieldBits},
	}
	for _, g := range groups {
		if g.count < 0 || g.count > g.limit {
			return &ConfigError{Field: g.name + "Count", Message: fmt.Sprintf("%d out of range", g.count)}
		}
		if g.count > 0 && (g.base < 0 || g.base+g.count > 32) {
			return &ConfigError{Field: g.name + "Base", Message: fmt.Sprintf("pins %d..%d outside 0..31", g.base, g.base+g.count-1)}
		}
	}
	return nil
}

// CycleDuration is the wall-clock length of one machine cycle.
func (c Config) CycleDuration() time.Duration {
	return time.Duration(float64(time.Second) / c.Frequency)
}

// Micros converts a cycle count to microseconds.
func (c Config) Micros(cycles uint64) float64 {
	return float64(cycles) * 1e6 / c.Frequency
}

// FIFODepth returns the input queue depth implied by the join mode.
func (c Config) FIFODepth() int {
	if c.Join == JoinTX {
		return FIFODepthJoined
	}
	return FIFODepth
}

// pinMask returns the mask of all pins the machine drives.
func (c Config) pinMask() uint32 {
	return groupMask(c.OutBase, c.OutCount) | groupMask(c.SetBase, c.SetCount) | groupMask(c.SideSetBase, c.SideSetCount)
}

// OutputPins lists the driven pins in ascending order.
func (c Config) OutputPins() []int {
	mask := c.pinMask()
	var pins []int
	for p := 0; p < 32; p++ {
		if mask&(1<<uint(p)) != 0 {
			pins = append(pins, p)
		}
	}
	return pins
}

func groupMask(base, count int) uint32 {
	if count <= 0 {
		return 0
	}
	if count >= 32 {
		return ^uint32(0)
	}
	return ((1 << uint(count)) - 1) << uint(base)
}
