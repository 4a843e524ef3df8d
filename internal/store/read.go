package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: not found")

// ReadSession returns the session with id.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, protocol, encoder, labels, engine_version
		FROM sessions WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// ListSessions returns every session. UUIDv7 IDs sort by creation time, so
// the order is oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, protocol, encoder, labels, engine_version
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, protocol, encoder, labels, engine_version
		FROM sessions
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	return sess, err
}

// ReadRebuilds returns the rebuilds of a session ordered by generation.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadRebuilds(ctx context.Context, sessionID string) ([]Rebuild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, generation, digest, state, words
		FROM rebuilds
		WHERE session_id = ?
		ORDER BY generation ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query rebuilds: %w", err)
	}
	defer rows.Close()

	rebuilds := []Rebuild{}
	for rows.Next() {
		r, err := scanRebuild(rows)
		if err != nil {
			return nil, err
		}
		rebuilds = append(rebuilds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebuilds: %w", err)
	}
	return rebuilds, nil
}

// FindByDigest returns the sessions and generations that produced digest.
func (s *Store) FindByDigest(ctx context.Context, digest string) ([]Rebuild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, generation, digest, state, words
		FROM rebuilds
		WHERE digest = ?
		ORDER BY session_id COLLATE BINARY ASC, generation ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("query digest: %w", err)
	}
	defer rows.Close()

	found := []Rebuild{}
	for rows.Next() {
		r, err := scanRebuild(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	return found, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess            Session
		encoder, labels string
	)
	if err := row.Scan(&sess.ID, &sess.Protocol, &encoder, &labels, &sess.EngineVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	var err error
	if sess.Encoder, err = unmarshalMap(encoder); err != nil {
		return Session{}, err
	}
	if sess.Labels, err = unmarshalMap(labels); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func scanRebuild(row scanner) (Rebuild, error) {
	var (
		r            Rebuild
		state, words []byte
	)
	if err := row.Scan(&r.SessionID, &r.Generation, &r.Digest, &state, &words); err != nil {
		return Rebuild{}, fmt.Errorf("scan rebuild: %w", err)
	}

	var err error
	if r.State, err = unmarshalState(state); err != nil {
		return Rebuild{}, err
	}
	if r.Words, err = unmarshalWords(words); err != nil {
		return Rebuild{}, err
	}
	return r, nil
}
