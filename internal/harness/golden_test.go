package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario goldens live in testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, f := range files {
		scenario, err := LoadScenario(f)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.Session = "s1"
	result.Trace = []TraceEvent{
		{Seq: 1, Op: OpSetup, Args: map[string]any{}, Digest: "ab"},
		{Seq: 1, Op: OpSet, Args: map[string]any{"200": 1}, Error: "INVALID_ADDRESS"},
	}
	result.Table[3] = 9
	result.Power = true

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"final":{"channels":{"3":9},"power":true},"scenario":"snap","session":"s1","trace":[`+
			`{"args":{},"digest":"ab","op":"setup","seq":1},`+
			`{"args":{"200":1},"error":"INVALID_ADDRESS","op":"set","seq":1}]}`,
		string(data))

	again, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.False(t, strings.Contains(string(data), "\n"))
}
