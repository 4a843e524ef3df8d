// Package harness runs selectrix transmitter scenarios as executable
// contract tests.
//
// A scenario applies channel and power writes to a transmitter and asserts
// on the frames built after each write, on the signal those frames produce
// on a simulated automaton, and on the journal of every frame.
//
// # Scenario Format
//
//	name: turnout_block
//	description: "Setting a channel rebuilds only its block"
//	session: sess-turnout
//	encoder:
//	  variant: t0t1        # or differential
//	  address: inverted    # or plain
//	setup:
//	  channels: { 0: 0xAC }
//	  power: true
//	flow:
//	  - set: { 17: 0x55 }
//	  - set: { 112: 1 }
//	    expect_error: INVALID_ADDRESS
//	  - power: false
//	assertions:
//	  - type: channel_bits
//	    address: 17
//	    bits: "011 011 011 011"
//	  - type: blocks_changed
//	    step: 0
//	    blocks: [1]
//	  - type: wire_roundtrip
//	  - type: journal_verified
//
// # Assertion Types
//
//   - channel_bits: the 12 stuffed bits of one channel in the final frame
//   - header_bits: the 12 header bits of one block in the final frame
//   - frame_words: the word count of the final frame
//   - blocks_changed: the blocks that differ before and after a flow step
//   - wire_roundtrip: the final frame played on a simulated automaton
//     reproduces its bits on the data line
//   - journal_verified: every journaled frame re-encodes to its stored words
//
// # Deterministic Testing
//
// The transmitter is never started. The harness builds a frame after every
// write exactly as the streamer does between frames, numbers frames with a
// fresh logical clock, and journals them to an in-memory SQLite store under
// a fixed session ID. Identical scenarios produce identical snapshots, which
// are compared against golden files with RunWithGolden.
package harness
