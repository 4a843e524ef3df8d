package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
)

func decodeEncodeResult(t *testing.T, out string) EncodeResult {
	t.Helper()
	var resp struct {
		Status string       `json:"status"`
		Data   EncodeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestEncodeDefaultStation(t *testing.T) {
	var table selectrix.ChannelTable
	table[17] = 0x55
	want, err := selectrix.Encoder{}.Build(&table, true)
	require.NoError(t, err)

	out, err := execute(t, "encode", "--set", "17=0x55")
	require.NoError(t, err)
	assert.Contains(t, out, "digest: "+engine.FrameDigest(want)+"\n")

	out, err = execute(t, "--format", "json", "encode", "--set", "17=0x55")
	require.NoError(t, err)
	got := decodeEncodeResult(t, out)
	assert.Equal(t, "selectrix", got.Protocol)
	assert.Equal(t, want, got.Words)
	assert.Equal(t, engine.FrameDigest(want), got.Digest)
}

func TestEncodeOverrides(t *testing.T) {
	var table selectrix.ChannelTable
	table[0] = 172
	enc := selectrix.Encoder{Variant: selectrix.VariantDifferential, Address: selectrix.AddressPlain}
	want, err := enc.Build(&table, false)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "encode",
		"--variant", "differential", "--address", "plain", "--power", "off", "--set", "0=172")
	require.NoError(t, err)
	got := decodeEncodeResult(t, out)
	assert.Len(t, got.Words, 96)
	assert.Equal(t, want, got.Words)
}

func TestEncodeConfigFile(t *testing.T) {
	out, err := execute(t, "--format", "json", "encode", "--config", "../config/testdata/selectrix.yaml")
	require.NoError(t, err)
	got := decodeEncodeResult(t, out)
	assert.Len(t, got.Words, 96)
	assert.Equal(t, engine.FrameDigest(got.Words), got.Digest)
}

func TestEncodeOtherProtocols(t *testing.T) {
	tests := map[string][]string{
		"dcc":      {"--protocol", "dcc"},
		"motorola": {"--protocol", "mm"},
		"mfx":      {"--config", "../config/testdata/mfx.yaml"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json", "encode"}, args...)...)
			require.NoError(t, err)
			got := decodeEncodeResult(t, out)
			assert.Equal(t, name, got.Protocol)
			assert.NotEmpty(t, got.Words)
			assert.Equal(t, engine.FrameDigest(got.Words), got.Digest)
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		exit int
	}{
		{"config_and_protocol", []string{"--config", "x.yaml", "--protocol", "dcc"}, ExitCommandError},
		{"unknown_protocol", []string{"--protocol", "lgb"}, ExitCommandError},
		{"missing_config", []string{"--config", "../config/testdata/missing.yaml"}, ExitCommandError},
		{"invalid_config", []string{"--config", "../config/testdata/bad_channel.yaml"}, ExitFailure},
		{"malformed_set", []string{"--set", "17"}, ExitCommandError},
		{"value_too_large", []string{"--set", "17=256"}, ExitCommandError},
		{"address_out_of_range", []string{"--set", "112=1"}, ExitFailure},
		{"bad_power", []string{"--power", "maybe"}, ExitCommandError},
		{"bad_variant", []string{"--variant", "ternary"}, ExitFailure},
		{"override_on_dcc", []string{"--protocol", "dcc", "--set", "1=2"}, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"encode"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
		})
	}
}

func TestParseChannelValues(t *testing.T) {
	values, err := parseChannelValues([]string{"0x11=0b1010", " 3 = 255 "})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{17: 10, 3: 255}, values)

	_, err = parseChannelValues([]string{"17=-1"})
	assert.Error(t, err)
}

func TestFormatWords(t *testing.T) {
	got := formatWords([]uint32{1, 2, 0xdeadbeef}, 2)
	assert.Equal(t, "0000: 00000001 00000002\n0002: deadbeef\n", got)
}
