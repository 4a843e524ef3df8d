package selectrix

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/bitstream"
)

func mixedTable() *ChannelTable {
	var table ChannelTable
	table[0] = 0xAC
	table[17] = 0x55
	table[50] = 0x01
	table[111] = 0xFF
	return &table
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncoder_Golden(t *testing.T) {
	tests := []struct {
		name  string
		enc   Encoder
		table *ChannelTable
		power bool
	}{
		{"frame_idle", Encoder{}, &ChannelTable{}, true},
		{"frame_mixed_power_off", Encoder{}, mixedTable(), false},
		{"frame_mixed_plain", Encoder{Address: AddressPlain}, mixedTable(), true},
		{"frame_mixed_differential", Encoder{Variant: VariantDifferential}, mixedTable(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := tt.enc.Build(tt.table, tt.power)
			require.NoError(t, err)
			require.Len(t, words, tt.enc.WordsPerFrame())

			newGoldie(t).Assert(t, tt.name, []byte(FormatFrame(words, tt.enc.WordsPerBlock())))
		})
	}
}

func TestEncoder_WordCounts(t *testing.T) {
	assert.Equal(t, 3, Encoder{}.WordsPerBlock())
	assert.Equal(t, 48, Encoder{}.WordsPerFrame())
	assert.Equal(t, 6, Encoder{Variant: VariantDifferential}.WordsPerBlock())
	assert.Equal(t, 96, Encoder{Variant: VariantDifferential}.WordsPerFrame())
}

func TestEncoder_FirstWord(t *testing.T) {
	var table ChannelTable
	table[0] = 0xAC

	words, err := Encoder{}.Build(&table, true)
	require.NoError(t, err)

	// 000111111111 then 101101111001, then channel 16 from its first bits
	assert.Equal(t, uint32(0x1ffb7924), words[0])
}

func TestEncoder_DifferentialUnpacks(t *testing.T) {
	table := mixedTable()
	enc := Encoder{Variant: VariantDifferential}

	words, err := enc.Build(table, true)
	require.NoError(t, err)

	symbols, err := bitstream.Unpack(words, 32, bitstream.SymbolBits)
	require.NoError(t, err)
	want, _ := bitstream.ApplyPolarity(EncodeFrame(table, true, AddressInverted), bitstream.Positive)
	assert.True(t, want.Equal(symbols))

	// exactly one line high in every symbol
	for i := 0; i < len(symbols); i += 2 {
		assert.NotEqual(t, symbols[i], symbols[i+1], "symbol %d", i/2)
	}
}

func TestEncoder_DifferentialPolarityIsFixed(t *testing.T) {
	enc := Encoder{Variant: VariantDifferential}
	table := mixedTable()

	first, err := enc.Build(table, true)
	require.NoError(t, err)
	second, err := enc.Build(table, true)
	require.NoError(t, err)
	assert.Equal(t, first, second, "each rebuild restarts from the same polarity")
}

func TestEncoder_Profile(t *testing.T) {
	p := Encoder{}.Profile(2, 3)
	assert.Equal(t, 2, p.Config.SideSetBase)
	assert.Equal(t, 3, p.Config.OutBase)
	assert.Equal(t, 1, p.Config.OutCount)

	p = Encoder{Variant: VariantDifferential}.Profile(2, 3)
	assert.Equal(t, 2, p.Config.OutCount)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("differential")
	require.NoError(t, err)
	assert.Equal(t, VariantDifferential, v)
	assert.Equal(t, "differential", v.String())

	v, err = ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantT0T1, v)

	_, err = ParseVariant("dcc")
	assert.Error(t, err)
}

func TestFormatFrame(t *testing.T) {
	out := FormatFrame([]uint32{1, 2, 3, 0xffffffff}, 3)
	assert.Equal(t, "block 00: 00000001 00000002 00000003\nblock 01: ffffffff\n", out)
}

func TestEncoder_BitsInvertsBuild(t *testing.T) {
	table := mixedTable()
	for _, enc := range []Encoder{{}, {Variant: VariantDifferential}, {Address: AddressPlain}} {
		words, err := enc.Build(table, true)
		require.NoError(t, err)

		bits, err := enc.Bits(words)
		require.NoError(t, err)
		assert.Equal(t, EncodeFrame(table, true, enc.Address).String(), bits.String(), "%s/%s", enc.Variant, enc.Address)
	}
}
