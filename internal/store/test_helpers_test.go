package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/railsig/internal/engine"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string) Session {
	t.Helper()
	sess := Session{
		ID:            id,
		Protocol:      "selectrix",
		Encoder:       map[string]string{"variant": "t0t1", "address": "inverted"},
		Labels:        map[string]string{},
		EngineVersion: "0.1.0",
	}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

// createTestRebuild builds a rebuild whose words are the channels widened to
// uint32, with a matching digest.
func createTestRebuild(sessionID string, gen int64, channels ...uint8) Rebuild {
	words := make([]uint32, len(channels))
	for i, c := range channels {
		words[i] = uint32(c)
	}
	return Rebuild{
		SessionID:  sessionID,
		Generation: gen,
		Digest:     engine.FrameDigest(words),
		State:      State{Channels: channels, Power: true},
		Words:      words,
	}
}

// widen is the EncodeFunc matching createTestRebuild.
func widen(_ Session, st State) ([]uint32, error) {
	words := make([]uint32, len(st.Channels))
	for i, c := range st.Channels {
		words[i] = uint32(c)
	}
	return words, nil
}
