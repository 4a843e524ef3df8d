package automaton

import (
	"fmt"
	"strings"
)

// Op is an instruction opcode.
type Op uint8

const (
	OpNop Op = iota
	OpOut
	OpSet
	OpMov
	OpJmp

	// pseudo-ops, resolved away by NewProgram
	opLabel
	opWrapTarget
	opWrap
)

// Dest is an instruction destination.
type Dest uint8

const (
	DestPins Dest = iota
	DestX
	DestY
	DestNull
)

// Source is a mov source.
type Source uint8

const (
	SrcX Source = iota
	SrcY
	SrcNull
	SrcPins
)

// Cond is a jump condition. XDec and YDec test for non-zero before
// decrementing, so a loop seeded with N runs N+1 times.
type Cond uint8

const (
	Always Cond = iota
	XZero
	XNotZero
	XDec
	YZero
	YNotZero
	YDec
)

// noSide marks an instruction without a side-set value.
const noSide = -1

// Instruction is one automaton instruction. Every instruction takes one cycle
// plus its delay; the side-set value (if any) is applied in the first cycle.
type Instruction struct {
	op     Op
	dest   Dest
	src    Source
	invert bool
	count  int
	value  int
	cond   Cond
	target string
	delay  int
	side   int
	name   string

	addr int // resolved jump address
}

// Out shifts count bits from the output shift register to dest.
func Out(dest Dest, count int) Instruction {
	return Instruction{op: OpOut, dest: dest, count: count, side: noSide}
}

// Set writes an immediate value (0..31) to dest.
func Set(dest Dest, value int) Instruction {
	return Instruction{op: OpSet, dest: dest, value: value, side: noSide}
}

// Mov copies src to dest.
func Mov(dest Dest, src Source) Instruction {
	return Instruction{op: OpMov, dest: dest, src: src, side: noSide}
}

// MovNot copies the bitwise inverse of src to dest.
func MovNot(dest Dest, src Source) Instruction {
	return Instruction{op: OpMov, dest: dest, src: src, invert: true, side: noSide}
}

// Jmp jumps to a label when cond holds.
func Jmp(cond Cond, target string) Instruction {
	return Instruction{op: OpJmp, cond: cond, target: target, side: noSide}
}

// Nop does nothing for one cycle plus delay.
func Nop() Instruction {
	return Instruction{op: OpNop, side: noSide}
}

// Label marks the address of the next instruction.
func Label(name string) Instruction {
	return Instruction{op: opLabel, name: name, side: noSide}
}

// WrapTarget marks where execution resumes after the wrap instruction.
func WrapTarget() Instruction {
	return Instruction{op: opWrapTarget, side: noSide}
}

// Wrap marks the previous instruction as the last one before wrapping.
func Wrap() Instruction {
	return Instruction{op: opWrap, side: noSide}
}

// Delay returns a copy of the instruction stalled for n extra cycles.
func (i Instruction) Delay(n int) Instruction {
	i.delay = n
	return i
}

// Side returns a copy of the instruction driving the side-set pins to v.
func (i Instruction) Side(v int) Instruction {
	i.side = v
	return i
}

// Cycles is the number of cycles the instruction occupies when it does not
// stall.
func (i Instruction) Cycles() int {
	return 1 + i.delay
}

func (i Instruction) pseudo() bool {
	return i.op >= opLabel
}

func (d Dest) String() string {
	switch d {
	case DestPins:
		return "pins"
	case DestX:
		return "x"
	case DestY:
		return "y"
	default:
		return "null"
	}
}

func (s Source) String() string {
	switch s {
	case SrcX:
		return "x"
	case SrcY:
		return "y"
	case SrcPins:
		return "pins"
	default:
		return "null"
	}
}

func (c Cond) String() string {
	switch c {
	case XZero:
		return "!x"
	case XNotZero:
		return "x"
	case XDec:
		return "x--"
	case YZero:
		return "!y"
	case YNotZero:
		return "y"
	case YDec:
		return "y--"
	default:
		return ""
	}
}

// String renders the instruction in assembler form.
func (i Instruction) String() string {
	var b strings.Builder
	switch i.op {
	case OpNop:
		b.WriteString("nop")
	case OpOut:
		fmt.Fprintf(&b, "out %s, %d", i.dest, i.count)
	case OpSet:
		fmt.Fprintf(&b, "set %s, %d", i.dest, i.value)
	case OpMov:
		if i.invert {
			fmt.Fprintf(&b, "mov %s, ~%s", i.dest, i.src)
		} else {
			fmt.Fprintf(&b, "mov %s, %s", i.dest, i.src)
		}
	case OpJmp:
		if i.cond == Always {
			fmt.Fprintf(&b, "jmp %s", i.target)
		} else {
			fmt.Fprintf(&b, "jmp %s, %s", i.cond, i.target)
		}
	case opLabel:
		return i.name + ":"
	case opWrapTarget:
		return ".wrap_target"
	case opWrap:
		return ".wrap"
	}
	if i.side != noSide {
		fmt.Fprintf(&b, " side %d", i.side)
	}
	if i.delay > 0 {
		fmt.Fprintf(&b, " [%d]", i.delay)
	}
	return b.String()
}
