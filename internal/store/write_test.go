package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSession_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess := Session{
		ID:            "0190a000-0000-7000-8000-000000000001",
		Protocol:      "selectrix",
		Encoder:       map[string]string{"variant": "differential", "address": "plain"},
		Labels:        map[string]string{"17": "Weiche 3"},
		EngineVersion: "0.1.0",
	}
	require.NoError(t, s.WriteSession(ctx, sess))
	require.NoError(t, s.WriteSession(ctx, sess), "duplicate ID is ignored")

	got, err := s.ReadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	var encoder string
	require.NoError(t, s.db.QueryRow("SELECT encoder FROM sessions WHERE id = ?", sess.ID).Scan(&encoder))
	assert.Equal(t, `{"address":"plain","variant":"differential"}`, encoder, "stored as canonical JSON")
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSession(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LatestSession(context.Background())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestSession(t, s, "0190a000-0000-7000-8000-000000000002")
	createTestSession(t, s, "0190a000-0000-7000-8000-000000000001")

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "0190a000-0000-7000-8000-000000000001", sessions[0].ID)

	latest, err := s.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0190a000-0000-7000-8000-000000000002", latest.ID)
}

func TestWriteRebuild_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1")

	r2 := createTestRebuild("s1", 2, 9, 8)
	r1 := createTestRebuild("s1", 1, 0xAC, 0, 7)
	require.NoError(t, s.WriteRebuild(ctx, r2))
	require.NoError(t, s.WriteRebuild(ctx, r1))

	dup := createTestRebuild("s1", 1, 1)
	require.NoError(t, s.WriteRebuild(ctx, dup), "second record for a generation is ignored")

	got, err := s.ReadRebuilds(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, r1, got[0], "ordered by generation")
	assert.Equal(t, r2, got[1])

	found, err := s.FindByDigest(ctx, r2.Digest)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(2), found[0].Generation)
}

func TestWriteRebuild_RequiresSession(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRebuild(context.Background(), createTestRebuild("nobody", 1, 1))
	assert.Error(t, err, "foreign key enforced")
}

func TestReadRebuilds_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadRebuilds(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
