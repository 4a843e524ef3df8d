package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/store"
	"github.com/roach88/railsig/internal/testutil"
)

// builtResult encodes the given writes the way Run does, without a journal.
func builtResult(t *testing.T, enc selectrix.Encoder, writes ...map[int]int) *Result {
	t.Helper()
	result := NewResult()
	var table selectrix.ChannelTable
	for _, w := range writes {
		for a, v := range w {
			table[a] = uint8(v)
		}
		words, err := enc.Build(&table, true)
		require.NoError(t, err)
		result.Frames = append(result.Frames, words)
	}
	result.Table, result.Power = table, true
	return result
}

func TestChannelOffset(t *testing.T) {
	assert.Equal(t, 12, channelOffset(0))
	assert.Equal(t, 96+12, channelOffset(1))
	assert.Equal(t, 1*96+12+12, channelOffset(17))
	assert.Equal(t, 15*96+12+6*12, channelOffset(111))
}

func TestAssertChannelBits(t *testing.T) {
	enc := selectrix.Encoder{}
	result := builtResult(t, enc, map[int]int{17: 0x55})
	actx := &AssertionContext{Encoder: enc}

	err := evaluate(result, Assertion{Type: AssertChannelBits, Address: 17, Bits: "011011011011"}, actx)
	assert.NoError(t, err)

	err = evaluate(result, Assertion{Type: AssertChannelBits, Address: 18, Bits: "011 011 011 011"}, actx)
	require.Error(t, err)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertChannelBits, assertErr.Type)
	assert.Equal(t, "001001001001", assertErr.Actual)
}

func TestAssertChannelBits_OutsideFrame(t *testing.T) {
	enc := selectrix.Encoder{}
	result := builtResult(t, enc, nil)

	err := evaluate(result, Assertion{Type: AssertHeaderBits, Block: 16, Bits: "000 111 111 111"}, &AssertionContext{Encoder: enc})
	assert.ErrorContains(t, err, "outside the frame")
}

func TestAssertFrameWords(t *testing.T) {
	result := builtResult(t, selectrix.Encoder{Variant: selectrix.VariantDifferential}, nil)

	assert.NoError(t, assertFrameWords(result, Assertion{Type: AssertFrameWords, Count: 96}))

	err := assertFrameWords(result, Assertion{Type: AssertFrameWords, Count: 48})
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, "96 words", assertErr.Actual)
}

func TestAssertBlocksChanged(t *testing.T) {
	enc := selectrix.Encoder{Variant: selectrix.VariantDifferential}
	result := builtResult(t, enc, nil, map[int]int{2: 1, 34: 1, 7: 9})
	actx := &AssertionContext{Encoder: enc}

	assert.NoError(t, assertBlocksChanged(result, Assertion{Type: AssertBlocksChanged, Step: 0, Blocks: []int{2, 7}}, actx))

	err := assertBlocksChanged(result, Assertion{Type: AssertBlocksChanged, Step: 0, Blocks: []int{2}}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocks [2 7]")

	err = assertBlocksChanged(result, Assertion{Type: AssertBlocksChanged, Step: 1}, actx)
	assert.ErrorContains(t, err, "no frame 2")
}

func TestAssertWireRoundtrip(t *testing.T) {
	for _, enc := range []selectrix.Encoder{
		{},
		{Variant: selectrix.VariantDifferential, Address: selectrix.AddressPlain},
	} {
		t.Run(enc.Variant.String(), func(t *testing.T) {
			tx := selectrix.NewTransmitter(testutil.NewFakeHandle(1), enc)
			require.NoError(t, tx.SetChannels(map[int]int{0: 0xAC, 63: 0x0F}))
			words, err := tx.BuildFrame()
			require.NoError(t, err)

			result := NewResult()
			result.Frames = [][]uint32{words}
			actx := &AssertionContext{Encoder: enc, Source: tx}
			assert.NoError(t, assertWireRoundtrip(result, actx))

			// the automaton plays the transmitter, so a stale result differs
			require.NoError(t, tx.SetChannel(0, 0))
			err = assertWireRoundtrip(result, actx)
			var assertErr *AssertionError
			require.ErrorAs(t, err, &assertErr)
			assert.Equal(t, "first difference at bit 12", assertErr.Actual)
		})
	}
}

func TestAssertJournalVerified(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	enc := selectrix.Encoder{}
	sess := selectrix.NewSession("sess-journal", enc, nil)
	require.NoError(t, st.WriteSession(ctx, sess))

	var table selectrix.ChannelTable
	table[9] = 0x81
	words, err := enc.Build(&table, true)
	require.NoError(t, err)

	good := store.Rebuild{
		SessionID:  sess.ID,
		Generation: 1,
		Digest:     engine.FrameDigest(words),
		State:      store.State{Channels: table[:], Power: true},
		Words:      words,
	}
	require.NoError(t, st.WriteRebuild(ctx, good))

	actx := &AssertionContext{Ctx: ctx, Store: st, Session: sess, Encoder: enc}
	assert.NoError(t, assertJournalVerified(actx))

	// a rebuild whose state does not produce its words
	bad := good
	bad.Generation = 2
	bad.State = store.State{Channels: make([]uint8, selectrix.Channels), Power: true}
	require.NoError(t, st.WriteRebuild(ctx, bad))

	err = assertJournalVerified(actx)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Contains(t, assertErr.Actual, "re-encoded words differ")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	enc := selectrix.Encoder{}
	result := builtResult(t, enc, nil)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFrameWords, Count: 48},
		{Type: AssertFrameWords, Count: 1},
		{Type: "nonsense"},
	}, &AssertionContext{Encoder: enc})

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertion 1:")
	assert.Contains(t, failures[1], `assertion 2: unknown assertion type "nonsense"`)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertFrameWords, Expected: "48 words", Actual: "96 words"}
	assert.Equal(t, "Assertion failed: frame_words\n  Expected: 48 words\n  Actual: 96 words", err.Error())
}
