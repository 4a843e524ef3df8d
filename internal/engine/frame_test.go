package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameDigest_KnownValues(t *testing.T) {
	assert.Equal(t, "90b30ab9eda4ab86f931e34b8e33267809615373e725be02cff0a0196e227ae8", FrameDigest(nil))
	assert.Equal(t, "dd13b3b9ca9ccfea319acaac53d62793ef3777edc310454cbbd71b162dcb8986", FrameDigest([]uint32{1, 0xdeadbeef}))
}

func TestFrameDigest_OrderMatters(t *testing.T) {
	assert.NotEqual(t, FrameDigest([]uint32{1, 2}), FrameDigest([]uint32{2, 1}))
	assert.NotEqual(t, FrameDigest([]uint32{0}), FrameDigest(nil), "a zero word is not the empty frame")
}

func TestNewFrame_CopiesWords(t *testing.T) {
	words := []uint32{1, 2, 3}
	f := NewFrame(7, words)
	words[0] = 99

	assert.Equal(t, int64(7), f.Generation)
	assert.Equal(t, []uint32{1, 2, 3}, f.Words)
	assert.Equal(t, FrameDigest([]uint32{1, 2, 3}), f.Digest)
}
