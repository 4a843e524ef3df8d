package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/railsig/internal/automaton"
)

func TestFakeHandle_PushPull(t *testing.T) {
	h := NewFakeHandle(2)
	require.NoError(t, h.Start())

	require.NoError(t, h.Push(context.Background(), 1))
	require.NoError(t, h.Push(context.Background(), 2))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Push(ctx, 3), context.DeadlineExceeded, "full queue blocks")

	assert.Equal(t, []uint32{1, 2}, h.Pull(5))
	assert.Equal(t, 2, h.Pushed())
}

func TestFakeHandle_StopRejectsPush(t *testing.T) {
	h := NewFakeHandle(2)
	require.NoError(t, h.Start())
	require.NoError(t, h.Push(context.Background(), 1))
	require.NoError(t, h.Stop())

	assert.Zero(t, h.Queued())
	assert.ErrorIs(t, h.Push(context.Background(), 2), ErrHandleStopped)
	assert.True(t, h.PushedAfterStop())

	starts, stops := h.Counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestFakeHandle_Close(t *testing.T) {
	h := NewFakeHandle(1)
	require.NoError(t, h.Start())
	h.Close()
	assert.ErrorIs(t, h.Push(context.Background(), 1), automaton.ErrFIFOClosed)
}
