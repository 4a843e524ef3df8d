package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_Reproduces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1")
	require.NoError(t, s.WriteRebuild(ctx, createTestRebuild("s1", 1, 1, 2, 3)))
	require.NoError(t, s.WriteRebuild(ctx, createTestRebuild("s1", 2, 4)))

	report, err := s.Verify(ctx, "s1", widen)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Checked)
}

func TestVerify_DetectsEncoderChange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1")
	require.NoError(t, s.WriteRebuild(ctx, createTestRebuild("s1", 1, 1, 2)))

	changed := func(sess Session, st State) ([]uint32, error) {
		words, _ := widen(sess, st)
		return append(words, 0), nil
	}
	report, err := s.Verify(ctx, "s1", changed)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "re-encoded words differ", report.Mismatches[0].Reason)
	assert.NotEqual(t, report.Mismatches[0].Stored, report.Mismatches[0].Recomputed)
}

func TestVerify_DetectsCorruptDigest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1")
	r := createTestRebuild("s1", 1, 5)
	r.Digest = "0000"
	require.NoError(t, s.WriteRebuild(ctx, r))

	report, err := s.Verify(ctx, "s1", widen)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "stored words do not match stored digest", report.Mismatches[0].Reason)
}

func TestVerify_EncodeError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1")
	require.NoError(t, s.WriteRebuild(ctx, createTestRebuild("s1", 1, 5)))

	failing := func(Session, State) ([]uint32, error) { return nil, errors.New("unknown variant") }
	report, err := s.Verify(ctx, "s1", failing)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Contains(t, report.Mismatches[0].Reason, "unknown variant")
}

func TestVerify_UnknownSession(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Verify(context.Background(), "missing", widen)
	assert.True(t, errors.Is(err, ErrNotFound))
}
