package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/store"
	"github.com/roach88/railsig/internal/testutil"
)

// writeJournal journals two rebuilds of a stopped transmitter: channel 17
// set, then power switched off. With corrupt, the second rebuild's words
// are altered after encoding.
func writeJournal(t *testing.T, corrupt bool) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	enc := selectrix.Encoder{}
	sess := selectrix.NewSession("sess-1", enc, map[string]string{"17": "Weiche 3"})
	require.NoError(t, st.WriteSession(ctx, sess))

	tx := selectrix.NewTransmitter(testutil.NewFakeHandle(1), enc)
	clock := engine.NewClock()
	rebuild := func(mutate bool) {
		words, err := tx.BuildFrame()
		require.NoError(t, err)
		frame := engine.NewFrame(clock.Next(), words)
		r := tx.Record(sess.ID, *frame)
		if mutate {
			r.Words = append([]uint32(nil), r.Words...)
			r.Words[0] ^= 1
		}
		require.NoError(t, st.WriteRebuild(ctx, r))
	}

	require.NoError(t, tx.SetChannel(17, 0x55))
	rebuild(false)
	tx.SetTrackPower(false)
	rebuild(corrupt)
	return path
}

func TestVerifyCleanJournal(t *testing.T) {
	db := writeJournal(t, false)

	out, err := execute(t, "verify", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Verify Summary: 1 session(s), 2 rebuild(s)")
	assert.Contains(t, out, "✓ Session: sess-1")
	assert.Contains(t, out, "✓ All journaled frames reproduce")
}

func TestVerifyCorruptJournalJSON(t *testing.T) {
	db := writeJournal(t, true)

	out, err := execute(t, "--format", "json", "verify", "--db", db, "--session", "sess-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string       `json:"code"`
			Details VerifyResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeMismatch, resp.Error.Code)
	assert.False(t, resp.Error.Details.AllOK)
	assert.Equal(t, 2, resp.Error.Details.Checked)
	require.Len(t, resp.Error.Details.Sessions, 1)
	require.Len(t, resp.Error.Details.Sessions[0].Mismatches, 1)
	assert.Equal(t, int64(2), resp.Error.Details.Sessions[0].Mismatches[0].Generation)
}

func TestVerifyErrors(t *testing.T) {
	_, err := execute(t, "verify", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	db := writeJournal(t, false)
	_, err = execute(t, "verify", "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestJournalTimelineText(t *testing.T) {
	db := writeJournal(t, false)

	out, err := execute(t, "journal", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Session: sess-1")
	assert.Contains(t, out, "Protocol: selectrix (engine "+engine.Version+")")
	assert.Contains(t, out, "17 (Weiche 3): 0x00 -> 0x55")
	assert.Contains(t, out, "power off")
	assert.Contains(t, out, "Rebuilds: 2 shown, 2 total")
}

func TestJournalChannelFilterJSON(t *testing.T) {
	db := writeJournal(t, false)

	out, err := execute(t, "--format", "json", "journal", "--db", db, "--channel", "17")
	require.NoError(t, err, out)

	var resp struct {
		Status    string        `json:"status"`
		SessionID string        `json:"session_id"`
		Data      JournalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, map[string]string{"variant": "t0t1", "address": "inverted"}, resp.Data.Encoder)
	assert.Equal(t, 2, resp.Data.Rebuilds)
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, []ChannelChange{{Address: 17, Label: "Weiche 3", From: 0, To: 0x55}}, resp.Data.Timeline[0].Changes)
}

func TestBuildTimeline(t *testing.T) {
	table := func(kv ...int) []uint8 {
		c := make([]uint8, selectrix.Channels)
		for i := 0; i < len(kv); i += 2 {
			c[kv[i]] = uint8(kv[i+1])
		}
		return c
	}
	rebuilds := []store.Rebuild{
		{Generation: 1, State: store.State{Channels: table(3, 1), Power: true}},
		{Generation: 2, State: store.State{Channels: table(3, 1, 5, 2), Power: true}},
		{Generation: 3, State: store.State{Channels: table(3, 1, 5, 2), Power: false}},
		{Generation: 4, State: store.State{Channels: table(5, 2), Power: false}},
	}

	all := buildTimeline(rebuilds, nil, -1)
	require.Len(t, all, 4)
	assert.Equal(t, []ChannelChange{{Address: 3, From: 0, To: 1}}, all[0].Changes)
	assert.False(t, all[0].PowerFlip)
	assert.Equal(t, []ChannelChange{{Address: 5, From: 0, To: 2}}, all[1].Changes)
	assert.True(t, all[2].PowerFlip)
	assert.Empty(t, all[2].Changes)
	assert.Equal(t, []ChannelChange{{Address: 3, From: 1, To: 0}}, all[3].Changes)

	only3 := buildTimeline(rebuilds, map[string]string{"3": "Signal"}, 3)
	require.Len(t, only3, 2)
	assert.Equal(t, int64(1), only3[0].Generation)
	assert.Equal(t, int64(4), only3[1].Generation)
	assert.Equal(t, "Signal", only3[1].Changes[0].Label)
}
