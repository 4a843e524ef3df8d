package store

import (
	"context"
	"fmt"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	encoder, err := marshalMap(sess.Encoder)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	labels, err := marshalMap(sess.Labels)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, protocol, encoder, labels, engine_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Protocol, encoder, labels, sess.EngineVersion)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteRebuild inserts a rebuild record. A second record for the same
// session and generation is silently ignored.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteRebuild(ctx context.Context, r Rebuild) error {
	state, err := marshalState(r.State)
	if err != nil {
		return fmt.Errorf("write rebuild: %w", err)
	}
	words, err := marshalWords(r.Words)
	if err != nil {
		return fmt.Errorf("write rebuild: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rebuilds (session_id, generation, digest, word_count, state, words)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, generation) DO NOTHING
	`, r.SessionID, r.Generation, r.Digest, len(r.Words), state, words)
	if err != nil {
		return fmt.Errorf("write rebuild: %w", err)
	}
	return nil
}
