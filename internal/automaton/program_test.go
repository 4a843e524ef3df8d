package automaton

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgram_ResolvesLabels(t *testing.T) {
	addr, ok := DCC.Label("do_low")
	require.True(t, ok)
	assert.Equal(t, 8, addr)
	assert.Equal(t, OpSet, DCC.At(addr).op)

	jmp := DCC.At(DCC.Len() - 1)
	assert.Equal(t, OpJmp, jmp.op)
	assert.Equal(t, 0, jmp.addr)
}

func TestNewProgram_Wrap(t *testing.T) {
	p, err := NewProgram("wrap", 0,
		Set(DestPins, 0),
		WrapTarget(),
		Set(DestPins, 1),
		Nop(),
		Wrap(),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, p.next(0))
	assert.Equal(t, 2, p.next(1))
	assert.Equal(t, 1, p.next(2), "wrap returns to the wrap target")
}

func TestNewProgram_Errors(t *testing.T) {
	tests := []struct {
		name    string
		side    int
		instrs  []Instruction
		message string
	}{
		{"empty", 0, nil, "no instructions"},
		{"unknown label", 0, []Instruction{Jmp(Always, "nowhere")}, `unknown label "nowhere"`},
		{"duplicate label", 0, []Instruction{Label("a"), Label("a"), Nop()}, `duplicate label "a"`},
		{"delay too long", 0, []Instruction{Nop().Delay(32)}, "delay 32 out of range 0..31"},
		{"delay shares side-set bits", 1, []Instruction{Nop().Side(0).Delay(16)}, "delay 16 out of range 0..15"},
		{"undeclared side-set", 0, []Instruction{Nop().Side(1)}, "no side-set pins"},
		{"side-set value too wide", 1, []Instruction{Nop().Side(2)}, "does not fit 1 bits"},
		{"set value", 0, []Instruction{Set(DestX, 32)}, "set value 32"},
		{"set null", 0, []Instruction{Set(DestNull, 1)}, "set to null"},
		{"out count", 0, []Instruction{Out(DestX, 0)}, "out bit count 0"},
		{"label past end", 0, []Instruction{Jmp(Always, "end"), Label("end")}, "points past"},
		{"side-set count", 6, []Instruction{Nop()}, "side-set count 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProgram(tt.name, tt.side, tt.instrs...)
			require.Error(t, err)
			var pe *ProgramError
			require.True(t, errors.As(err, &pe))
			assert.Contains(t, pe.Error(), tt.message)
		})
	}
}

func TestProgram_String(t *testing.T) {
	listing := DCCRailcom.String()

	assert.Contains(t, listing, ".program dcc_railcom\n.side_set 1\n")
	assert.Contains(t, listing, "cutout:\n    jmp y--, cutout side 1 [7]\n")
	assert.Contains(t, listing, "    out y, 9 side 0\n")
}

func TestBuiltinPrograms_CycleBudget(t *testing.T) {
	// per-bit cycle counts of the straight-line programs
	sum := func(p *Program) int {
		n := 0
		for i := 0; i < p.Len(); i++ {
			n += p.At(i).Cycles()
		}
		return n
	}

	assert.Equal(t, SelectrixCyclesPerBit, sum(Selectrix))
	assert.Equal(t, SelectrixCyclesPerBit, sum(SelectrixDifferential))
	assert.Equal(t, 8, sum(Motorola))
}
