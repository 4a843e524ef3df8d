package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DomainFrame prefixes frame digests. The version suffix allows the digest
// layout to change without colliding with journaled digests.
const DomainFrame = "railsig/frame/v1"

// Version is recorded with every journal session.
const Version = "0.3.0"

// Frame is one complete transmission cycle as pushed to the automaton.
//
// A published Frame is never modified; a rebuild creates a new one and swaps
// the streamer's pointer.
type Frame struct {
	Generation int64
	Words      []uint32
	Digest     string
}

// NewFrame copies words into a new frame and computes its digest.
func NewFrame(generation int64, words []uint32) *Frame {
	w := make([]uint32, len(words))
	copy(w, words)
	return &Frame{
		Generation: generation,
		Words:      w,
		Digest:     FrameDigest(w),
	}
}

// FrameDigest computes SHA256(DomainFrame + 0x00 + words as big-endian
// uint32). Identical words always give the same digest.
func FrameDigest(words []uint32) string {
	h := sha256.New()
	h.Write([]byte(DomainFrame))
	h.Write([]byte{0x00})
	var buf [4]byte
	for _, w := range words {
		binary.BigEndian.PutUint32(buf[:], w)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
