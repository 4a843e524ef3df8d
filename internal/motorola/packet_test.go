package motorola

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/engine"
)

func TestAddressDigits(t *testing.T) {
	tests := []struct {
		addr int
		want [AddressTrits]Trit
	}{
		{1, [4]Trit{TritOne, TritZero, TritZero, TritZero}},
		{3, [4]Trit{TritZero, TritOne, TritZero, TritZero}},
		{5, [4]Trit{TritOpen, TritOne, TritZero, TritZero}},
		{79, [4]Trit{TritOne, TritOpen, TritOpen, TritOpen}},
		{80, [4]Trit{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddressDigits(tt.addr), "address %d", tt.addr)
	}
}

func TestLoco_Bits(t *testing.T) {
	tests := []struct {
		name     string
		addr     int
		speed    int
		function bool
		want     string
	}{
		{"stopped", 3, 0, false, "001100000000000000"},
		{"running with function", 5, 6, true, "101100001100111100"},
		{"reverse", 1, SpeedReverse, false, "110000000011000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Loco(tt.addr, tt.speed, tt.function)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Bits().String())
		})
	}
}

func TestLoco_Word(t *testing.T) {
	p, err := Loco(3, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b001100000000000000), p.Word())
}

func TestLoco_Range(t *testing.T) {
	_, err := Loco(0, 1, false)
	assert.True(t, engine.IsAddressError(err))
	_, err = Loco(81, 1, false)
	assert.True(t, engine.IsAddressError(err))
	_, err = Loco(1, MaxSpeed+1, false)
	assert.Error(t, err)
}

func TestAccessory(t *testing.T) {
	p, err := Accessory(2, 5, true)
	require.NoError(t, err)
	assert.Equal(t, "100000000011001111", p.Bits().String())

	_, err = Accessory(2, 8, true)
	assert.Error(t, err)
}

func TestTrit_String(t *testing.T) {
	assert.Equal(t, "open", TritOpen.String())
	assert.Equal(t, [2]uint8{1, 0}, [2]uint8{uint8(TritOpen.Bits()[0]), uint8(TritOpen.Bits()[1])})
}
