package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/railsig/internal/engine"
)

// EncodeFunc re-encodes a journaled state with the session's encoder
// settings.
type EncodeFunc func(sess Session, st State) ([]uint32, error)

// Mismatch describes one rebuild that did not reproduce.
type Mismatch struct {
	Generation int64  `json:"generation"`
	Reason     string `json:"reason"`
	Stored     string `json:"stored"`
	Recomputed string `json:"recomputed,omitempty"`
}

// Report is the outcome of verifying one session.
type Report struct {
	SessionID  string     `json:"session_id"`
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every rebuild reproduced.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Verify replays every rebuild of a session: it checks the stored words
// against the stored digest, then re-encodes the stored state and compares
// words and digest. Encoding is deterministic, so any difference means the
// encoder changed or the journal is corrupt.
func (s *Store) Verify(ctx context.Context, sessionID string, encode EncodeFunc) (Report, error) {
	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}
	rebuilds, err := s.ReadRebuilds(ctx, sessionID)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	report := Report{SessionID: sessionID, Mismatches: []Mismatch{}}
	for _, r := range rebuilds {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		if got := engine.FrameDigest(r.Words); got != r.Digest {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Generation: r.Generation,
				Reason:     "stored words do not match stored digest",
				Stored:     r.Digest,
				Recomputed: got,
			})
			continue
		}

		words, err := encode(sess, r.State)
		if err != nil {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Generation: r.Generation,
				Reason:     fmt.Sprintf("re-encode failed: %v", err),
				Stored:     r.Digest,
			})
			continue
		}
		if !slices.Equal(words, r.Words) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Generation: r.Generation,
				Reason:     "re-encoded words differ",
				Stored:     r.Digest,
				Recomputed: engine.FrameDigest(words),
			})
		}
	}
	return report, nil
}
