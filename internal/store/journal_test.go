package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietJournal() JournalOption {
	return WithJournalLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJournal_WritesAndFlushes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sess := Session{ID: "j1", Protocol: "selectrix", EngineVersion: "0.1.0"}

	j, err := NewJournal(ctx, s, sess, quietJournal())
	require.NoError(t, err)
	for gen := int64(1); gen <= 5; gen++ {
		r := createTestRebuild("ignored", gen, uint8(gen))
		j.Record(r)
	}
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "close is idempotent")

	got, err := s.ReadRebuilds(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "j1", got[0].SessionID, "records take the journal's session")
	assert.Equal(t, JournalStats{Written: 5}, j.Stats())

	stored, err := s.ReadSession(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{}, stored.Labels)
}

func TestJournal_DropsWhenFull(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sess := createTestSession(t, s, "j2")

	// writer not running yet: the buffer fills and Record must not block
	j := &Journal{
		store:   s,
		session: sess,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		records: make(chan Rebuild, 2),
		done:    make(chan struct{}),
	}
	for gen := int64(1); gen <= 5; gen++ {
		j.Record(createTestRebuild("", gen, 1))
	}
	assert.Equal(t, uint64(3), j.Stats().Dropped)

	go j.run()
	require.NoError(t, j.Close())

	got, err := s.ReadRebuilds(ctx, "j2")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, JournalStats{Written: 2, Dropped: 3}, j.Stats())
}
