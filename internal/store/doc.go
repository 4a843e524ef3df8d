// Package store provides the SQLite frame journal.
//
// The journal is append-only:
//   - Sessions: one row per transmitter run, keyed by a UUIDv7
//   - Rebuilds: one row per successful frame rebuild, with the state it was
//     built from and the packed words
//
// # Critical Patterns
//
// Logical ordering:
//   - Rebuilds are ordered by (session_id, generation), never by wall time
//   - Session IDs are UUIDv7, so sorting them sorts by creation time
//
// Idempotent writes:
//   - ON CONFLICT DO NOTHING on sessions(id) and rebuilds(session_id, generation)
//
// Compact blobs:
//   - State and words are msgpack; encoder settings and labels are canonical
//     JSON so they stay readable from the sqlite3 shell
//
// The journal is never read back into a transmitter. Verify re-encodes the
// stored state and checks the digest, which proves encoding determinism
// across versions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
