package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/bitstream"
	"github.com/roach88/railsig/internal/capture"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/store"
)

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Session store.Session
	Encoder selectrix.Encoder
	Source  engine.FrameSource
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertChannelBits:
		return assertBits(result, a, actx, channelOffset(a.Address), selectrix.ByteBits)
	case AssertHeaderBits:
		return assertBits(result, a, actx, a.Block*selectrix.BlockBits, selectrix.HeaderBits)
	case AssertFrameWords:
		return assertFrameWords(result, a)
	case AssertBlocksChanged:
		return assertBlocksChanged(result, a, actx)
	case AssertWireRoundtrip:
		return assertWireRoundtrip(result, actx)
	case AssertJournalVerified:
		return assertJournalVerified(actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// channelOffset is the bit offset of a channel inside the frame: channel
// block+16*i is the i-th byte of block block.
func channelOffset(addr int) int {
	block, index := addr%selectrix.Blocks, addr/selectrix.Blocks
	return block*selectrix.BlockBits + selectrix.HeaderBits + index*selectrix.ByteBits
}

// frameBits recovers the bit stream of the i-th built frame.
func frameBits(result *Result, i int, enc selectrix.Encoder) (bitstream.Stream, error) {
	if i < 0 || i >= len(result.Frames) {
		return nil, fmt.Errorf("no frame %d", i)
	}
	bits, err := enc.Bits(result.Frames[i])
	if err != nil {
		return nil, err
	}
	if len(bits) < selectrix.FrameBits {
		return nil, fmt.Errorf("frame %d has %d bits, want %d", i, len(bits), selectrix.FrameBits)
	}
	return bits[:selectrix.FrameBits], nil
}

func assertBits(result *Result, a Assertion, actx *AssertionContext, offset, n int) error {
	want, err := bitstream.Parse(a.Bits)
	if err != nil {
		return err
	}
	bits, err := frameBits(result, len(result.Frames)-1, actx.Encoder)
	if err != nil {
		return err
	}
	if offset < 0 || offset+n > len(bits) {
		return fmt.Errorf("%s: bit range %d..%d outside the frame", a.Type, offset, offset+n-1)
	}
	got := bits[offset : offset+n]
	if !got.Equal(want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: want.String(),
			Actual:   got.String(),
		}
	}
	return nil
}

func assertFrameWords(result *Result, a Assertion) error {
	if got := len(result.Final()); got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d words", a.Count),
			Actual:   fmt.Sprintf("%d words", got),
		}
	}
	return nil
}

// assertBlocksChanged compares the frames before and after a flow step
// block by block.
func assertBlocksChanged(result *Result, a Assertion, actx *AssertionContext) error {
	before, err := frameBits(result, a.Step, actx.Encoder)
	if err != nil {
		return err
	}
	after, err := frameBits(result, a.Step+1, actx.Encoder)
	if err != nil {
		return err
	}

	changed := []int{}
	for b := 0; b < selectrix.Blocks; b++ {
		lo, hi := b*selectrix.BlockBits, (b+1)*selectrix.BlockBits
		if !before[lo:hi].Equal(after[lo:hi]) {
			changed = append(changed, b)
		}
	}
	want := a.Blocks
	if want == nil {
		want = []int{}
	}
	if !slices.Equal(changed, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("blocks %v changed by step %d", want, a.Step),
			Actual:   fmt.Sprintf("blocks %v", changed),
		}
	}
	return nil
}

// assertWireRoundtrip plays one frame on a simulated automaton and reads
// the data line back at the middle of every bit cell.
func assertWireRoundtrip(result *Result, actx *AssertionContext) error {
	const t0, data = 0, 1

	want, err := frameBits(result, len(result.Frames)-1, actx.Encoder)
	if err != nil {
		return err
	}

	cycles := uint64(selectrix.FrameBits * automaton.SelectrixCyclesPerBit)
	rec, err := capture.Record(actx.Encoder.Profile(t0, data), actx.Source, cycles)
	if err != nil {
		return err
	}
	if rec.Stats.Stalls != 0 {
		return fmt.Errorf("wire_roundtrip: automaton stalled %d times", rec.Stats.Stalls)
	}

	rows := rec.Levels(1)
	column := make(map[int]int, len(rec.Pins))
	for i, p := range rec.Pins {
		column[p] = i
	}

	got := make(bitstream.Stream, 0, selectrix.FrameBits)
	if actx.Encoder.Variant == selectrix.VariantDifferential {
		symbols := make(bitstream.Stream, 0, 2*selectrix.FrameBits)
		for k := 0; k < selectrix.FrameBits; k++ {
			row := rows[k*automaton.SelectrixCyclesPerBit+selectrixSampleOffset]
			symbols = append(symbols, level(row[column[data+1]]), level(row[column[data]]))
		}
		got, err = bitstream.RemovePolarity(symbols, actx.Encoder.StartPolarity)
		if err != nil {
			return fmt.Errorf("wire_roundtrip: %w", err)
		}
	} else {
		for k := 0; k < selectrix.FrameBits; k++ {
			row := rows[k*automaton.SelectrixCyclesPerBit+selectrixSampleOffset]
			got = append(got, level(row[column[data]]))
		}
	}

	if !got.Equal(want) {
		first := 0
		for first < len(want) && got[first] == want[first] {
			first++
		}
		return &AssertionError{
			Type:     AssertWireRoundtrip,
			Expected: "data line reproduces the frame bits",
			Actual:   fmt.Sprintf("first difference at bit %d", first),
		}
	}
	return nil
}

// selectrixSampleOffset is a point inside every bit cell after the data
// line has settled.
const selectrixSampleOffset = 5

func level(high bool) bitstream.Bit {
	if high {
		return 1
	}
	return 0
}

func assertJournalVerified(actx *AssertionContext) error {
	report, err := actx.Store.Verify(actx.Ctx, actx.Session.ID, selectrix.Replay)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertJournalVerified,
			Expected: fmt.Sprintf("%d journaled frames re-encode identically", report.Checked),
			Actual:   fmt.Sprintf("%d mismatches, first: %s", len(report.Mismatches), report.Mismatches[0].Reason),
		}
	}
	return nil
}
