package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/railsig/internal/selectrix"
)

// Scenario defines a transmitter scenario.
// A scenario applies channel and power writes to a selectrix transmitter,
// rebuilding the frame after each write, and asserts on the frames built.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed journal session ID. If empty, defaults to
	// "test-session-default" so snapshots are reproducible.
	Session string `yaml:"session,omitempty"`

	// Encoder selects the frame encoding. Defaults: t0t1, inverted.
	Encoder EncoderSpec `yaml:"encoder,omitempty"`

	// Labels are stored with the journal session.
	Labels map[string]string `yaml:"labels,omitempty"`

	// Setup establishes the state before the flow. It is applied as one
	// write and is expected to succeed.
	Setup Setup `yaml:"setup,omitempty"`

	// Flow contains the writes under test, applied in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the built frames and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// EncoderSpec names the encoder settings.
type EncoderSpec struct {
	Variant string `yaml:"variant,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// Encoder parses the settings.
func (e EncoderSpec) Encoder() (selectrix.Encoder, error) {
	return selectrix.ParseSettings(map[string]string{"variant": e.Variant, "address": e.Address})
}

// Setup is the initial transmitter state.
type Setup struct {
	Channels map[int]int `yaml:"channels,omitempty"`
	Power    *bool       `yaml:"power,omitempty"`
}

// FlowStep is one write. Exactly one of Set and Power is given.
type FlowStep struct {
	// Set writes channel values, address to value.
	Set map[int]int `yaml:"set,omitempty"`

	// Power switches track power.
	Power *bool `yaml:"power,omitempty"`

	// ExpectError is the expected error code (e.g. "INVALID_ADDRESS"). If
	// empty the write must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Op names the step for the trace.
func (s FlowStep) Op() string {
	if s.Power != nil {
		return OpPower
	}
	return OpSet
}

// Trace operation names.
const (
	OpSetup = "setup"
	OpSet   = "set"
	OpPower = "power"
)

// Assertion validates the built frames or the journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "channel_bits": the 12 bits of one channel in the final frame
	// - "header_bits": the 12 header bits of one block in the final frame
	// - "frame_words": the word count of the final frame
	// - "blocks_changed": the blocks that differ before and after a step
	// - "wire_roundtrip": the final frame played on a simulated automaton
	//   reproduces its bits on the data line
	// - "journal_verified": every journaled frame re-encodes identically
	Type string `yaml:"type"`

	// Address is the channel (channel_bits).
	Address int `yaml:"address,omitempty"`

	// Block is the block index (header_bits).
	Block int `yaml:"block,omitempty"`

	// Bits is the expected bit string; spaces are ignored.
	Bits string `yaml:"bits,omitempty"`

	// Count is the expected word count (frame_words).
	Count int `yaml:"count,omitempty"`

	// Step is the zero-based flow step (blocks_changed).
	Step int `yaml:"step,omitempty"`

	// Blocks are the expected changed blocks in ascending order
	// (blocks_changed).
	Blocks []int `yaml:"blocks,omitempty"`
}

// Assertion type constants.
const (
	AssertChannelBits     = "channel_bits"
	AssertHeaderBits      = "header_bits"
	AssertFrameWords      = "frame_words"
	AssertBlocksChanged   = "blocks_changed"
	AssertWireRoundtrip   = "wire_roundtrip"
	AssertJournalVerified = "journal_verified"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the scenario files at path: the file itself, or
// every .yaml and .yml file directly inside a directory, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := s.Encoder.Encoder(); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if (step.Set == nil) == (step.Power == nil) {
			return fmt.Errorf("flow step %d: exactly one of set and power is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Flow)); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, steps int) error {
	switch a.Type {
	case AssertChannelBits, AssertHeaderBits:
		if a.Bits == "" {
			return fmt.Errorf("%s requires bits", a.Type)
		}
	case AssertFrameWords:
		if a.Count <= 0 {
			return fmt.Errorf("frame_words requires a positive count")
		}
	case AssertBlocksChanged:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("blocks_changed step %d out of range 0..%d", a.Step, steps-1)
		}
	case AssertWireRoundtrip, AssertJournalVerified:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
