package engine

import "sync/atomic"

// Clock numbers frames. Every successful rebuild takes the next generation,
// so a frame's generation orders it among all frames built by a streamer.
//
// Generations are logical: they count rebuilds, never wall time.
//
// Thread-safety: Clock is safe for concurrent use. In practice only the
// streamer goroutine calls Next.
type Clock struct {
	gen atomic.Int64
}

// NewClock creates a clock starting at 0. The first frame is generation 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a given generation.
// Used to continue numbering from a journaled session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.gen.Store(start)
	return c
}

// Next returns the next generation and advances the clock.
func (c *Clock) Next() int64 {
	return c.gen.Add(1)
}

// Current returns the last generation handed out.
func (c *Clock) Current() int64 {
	return c.gen.Load()
}
