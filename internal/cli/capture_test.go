package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureWritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sx.wav")

	out, err := execute(t, "--format", "json", "capture", "--protocol", "sx", "--cycles", "5000", "--out", path)
	require.NoError(t, err, out)

	var resp struct {
		Status string        `json:"status"`
		Data   CaptureResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "selectrix", resp.Data.Protocol)
	assert.NotEmpty(t, resp.Data.Program)
	assert.Equal(t, []int{0, 1}, resp.Data.Pins)
	assert.Equal(t, uint64(5000), resp.Data.Cycles)
	assert.Positive(t, resp.Data.SampleRate)
	assert.NotEmpty(t, resp.Data.Digest)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
}

func TestCaptureText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcc.wav")

	out, err := execute(t, "capture", "--protocol", "dcc", "--cycles", "2000", "--decimation", "1", "-o", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote "+path)
	assert.Contains(t, out, "(every 1 cycle(s))")
}

func TestCaptureRequiresOut(t *testing.T) {
	_, err := execute(t, "capture", "--protocol", "sx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out")
}

func TestCaptureZeroCycles(t *testing.T) {
	_, err := execute(t, "capture", "--cycles", "0", "--out", filepath.Join(t.TempDir(), "x.wav"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTimingSelectrixBitCell(t *testing.T) {
	out, err := execute(t, "--format", "json", "timing", "--protocol", "sx", "--cycles", "20000")
	require.NoError(t, err, out)

	var resp struct {
		Status string       `json:"status"`
		Data   TimingResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.Widths)

	// The clock line idles high and drops low at the start of every cell.
	found := false
	for _, w := range resp.Data.Widths {
		if w.Pin == 0 && !w.High && w.Cycles == 10 {
			found = true
		}
	}
	assert.True(t, found, "no 10-cycle low pulse on the clock line: %+v", resp.Data.Widths)
}

func TestTimingText(t *testing.T) {
	out, err := execute(t, "timing", "--protocol", "mm", "--cycles", "20000")
	require.NoError(t, err, out)
	assert.Contains(t, out, "program ")
	assert.Contains(t, out, "pin")
	assert.Contains(t, out, "cycles")
}
