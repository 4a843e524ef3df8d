package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/railsig/internal/snapshot"
)

// Snapshot renders a result as canonical JSON: the scenario name, the
// session, every trace event and the final transmitter state. Equal runs
// produce equal bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		m := map[string]any{
			"seq": event.Seq,
			"op":  event.Op,
		}
		if event.Args != nil {
			m["args"] = event.Args
		}
		if event.Digest != "" {
			m["digest"] = event.Digest
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		trace[i] = m
	}

	return snapshot.Marshal(map[string]any{
		"scenario": name,
		"session":  result.Session,
		"trace":    trace,
		"final":    snapshot.State(result.Table[:], result.Power),
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
