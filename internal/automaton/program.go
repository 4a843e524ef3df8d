package automaton

import (
	"fmt"
	"sort"
	"strings"
)

// delayFieldBits is the width shared by the delay and side-set fields of an
// instruction word.
const delayFieldBits = 5

// Program is a resolved instruction table.
//
// The program counter advances one instruction at a time and moves from the
// wrap instruction back to the wrap target without spending a cycle, exactly
// like an explicit jump that costs nothing.
type Program struct {
	Name         string
	SideSetCount int

	code       []Instruction
	labels     map[string]int
	wrapTarget int
	wrap       int
}

// NewProgram resolves labels and wrap markers and validates the operands.
func NewProgram(name string, sideSetCount int, instrs ...Instruction) (*Program, error) {
	if sideSetCount < 0 || sideSetCount > delayFieldBits {
		return nil, &ProgramError{Program: name, Addr: -1, Message: fmt.Sprintf("side-set count %d out of range 0..%d", sideSetCount, delayFieldBits)}
	}

	p := &Program{
		Name:         name,
		SideSetCount: sideSetCount,
		labels:       make(map[string]int),
		wrap:         -1,
	}

	for _, ins := range instrs {
		switch ins.op {
		case opLabel:
			if _, dup := p.labels[ins.name]; dup {
				return nil, &ProgramError{Program: name, Addr: -1, Message: fmt.Sprintf("duplicate label %q", ins.name)}
			}
			p.labels[ins.name] = len(p.code)
		case opWrapTarget:
			p.wrapTarget = len(p.code)
		case opWrap:
			p.wrap = len(p.code) - 1
		default:
			p.code = append(p.code, ins)
		}
	}

	if len(p.code) == 0 {
		return nil, &ProgramError{Program: name, Addr: -1, Message: "program has no instructions"}
	}
	if p.wrap < 0 {
		p.wrap = len(p.code) - 1
	}
	if p.wrapTarget >= len(p.code) || p.wrapTarget > p.wrap {
		return nil, &ProgramError{Program: name, Addr: -1, Message: "wrap target after wrap"}
	}

	maxDelay := 1<<(delayFieldBits-sideSetCount) - 1
	for addr := range p.code {
		ins := &p.code[addr]
		if err := p.check(addr, ins, maxDelay); err != nil {
			return nil, err
		}
		if ins.op == OpJmp {
			ins.addr = p.labels[ins.target]
		}
	}

	return p, nil
}

// MustProgram is NewProgram for the built-in tables.
func MustProgram(name string, sideSetCount int, instrs ...Instruction) *Program {
	p, err := NewProgram(name, sideSetCount, instrs...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) check(addr int, ins *Instruction, maxDelay int) error {
	fail := func(format string, args ...any) error {
		return &ProgramError{Program: p.Name, Addr: addr, Message: fmt.Sprintf(format, args...)}
	}

	if ins.delay < 0 || ins.delay > maxDelay {
		return fail("delay %d out of range 0..%d", ins.delay, maxDelay)
	}
	if ins.side != noSide {
		if p.SideSetCount == 0 {
			return fail("side-set used but program declares no side-set pins")
		}
		if ins.side < 0 || ins.side >= 1<<p.SideSetCount {
			return fail("side-set value %d does not fit %d bits", ins.side, p.SideSetCount)
		}
	}

	switch ins.op {
	case OpOut:
		if ins.count < 1 || ins.count > 32 {
			return fail("out bit count %d out of range 1..32", ins.count)
		}
	case OpSet:
		if ins.value < 0 || ins.value > 31 {
			return fail("set value %d out of range 0..31", ins.value)
		}
		if ins.dest == DestNull {
			return fail("set to null")
		}
	case OpJmp:
		target, ok := p.labels[ins.target]
		if !ok {
			return fail("unknown label %q", ins.target)
		}
		if target >= len(p.code) {
			return fail("label %q points past the last instruction", ins.target)
		}
	}
	return nil
}

// Len is the number of real instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// At returns the instruction at addr.
func (p *Program) At(addr int) Instruction {
	return p.code[addr]
}

// Label returns the address of a label.
func (p *Program) Label(name string) (int, bool) {
	addr, ok := p.labels[name]
	return addr, ok
}

// next returns the address following addr, honouring the wrap.
func (p *Program) next(addr int) int {
	if addr == p.wrap {
		return p.wrapTarget
	}
	return addr + 1
}

// String renders an assembler listing.
func (p *Program) String() string {
	byAddr := make(map[int][]string)
	for name, addr := range p.labels {
		byAddr[addr] = append(byAddr[addr], name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, ".program %s\n", p.Name)
	if p.SideSetCount > 0 {
		fmt.Fprintf(&b, ".side_set %d\n", p.SideSetCount)
	}
	for addr, ins := range p.code {
		if addr == p.wrapTarget {
			b.WriteString(".wrap_target\n")
		}
		names := byAddr[addr]
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s:\n", name)
		}
		fmt.Fprintf(&b, "    %s\n", ins)
		if addr == p.wrap {
			b.WriteString(".wrap\n")
		}
	}
	return b.String()
}
