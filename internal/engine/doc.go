// Package engine implements the streamer that keeps the timing automaton fed.
//
// The streamer is the only producer for an automaton handle. It owns the
// active frame and decides when to rebuild it; the application only writes
// its own state and calls MarkDirty.
//
// ARCHITECTURE:
//
// Single-Producer Streaming Loop:
// One goroutine per streamer does all rebuilding and pushing. This ensures:
// - Frames are swapped only between frames, never mid-frame
// - Every word is pushed whole
// - The source is read by exactly one goroutine
//
// Loop cycle:
// 1. If the dirty flag is set, clear it and rebuild from the FrameSource
// 2. Publish the new Frame by pointer swap (double buffer)
// 3. Push every word of the active frame; Push blocks while the queue is full
// 4. Repeat
//
// Back-pressure:
// The blocking push ties host output to the automaton's consumption rate.
// There is no buffer between the streamer and the automaton queue.
//
// CRITICAL PATTERNS:
//
// Dirty flag handoff:
// Mutators set the flag after their write. The loop swaps it to false before
// reading the source, so a write that races with a rebuild sets it again and
// forces another rebuild. No mutation is lost and no per-channel locking is
// needed, because every rebuild re-reads the whole table.
//
// Two-phase stop:
// Stop cancels the loop and waits for it, then stops the automaton, which
// halts between cycles and drives its pins idle.
//
// Frame identity:
// Each successful rebuild takes the next generation from Clock. Frames carry
// a domain-separated SHA-256 digest of their words, which the frame journal
// stores and the verify command recomputes.
package engine
