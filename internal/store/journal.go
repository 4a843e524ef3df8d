package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultJournalBuffer is the number of rebuilds queued for writing.
const DefaultJournalBuffer = 64

// Journal writes rebuild records in the background. Record never blocks, so
// it can run as the streamer's rebuild hook; when the buffer is full the
// record is dropped and counted.
type Journal struct {
	store   *Store
	session Session
	logger  *slog.Logger

	records chan Rebuild
	done    chan struct{}
	once    sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// JournalOption configures a Journal.
type JournalOption func(*journalConfig)

type journalConfig struct {
	buffer int
	logger *slog.Logger
}

// WithBuffer sets the queue length. Default: DefaultJournalBuffer.
func WithBuffer(n int) JournalOption {
	return func(c *journalConfig) {
		c.buffer = n
	}
}

// WithJournalLogger sets the logger. Default: slog.Default().
func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(c *journalConfig) {
		c.logger = l
	}
}

// NewJournal writes the session record and starts the writer goroutine.
func NewJournal(ctx context.Context, s *Store, sess Session, opts ...JournalOption) (*Journal, error) {
	cfg := journalConfig{buffer: DefaultJournalBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := s.WriteSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("start journal: %w", err)
	}

	j := &Journal{
		store:   s,
		session: sess,
		logger:  cfg.logger,
		records: make(chan Rebuild, cfg.buffer),
		done:    make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// Session returns the journaled session.
func (j *Journal) Session() Session {
	return j.session
}

// Record queues r for writing under the journal's session.
func (j *Journal) Record(r Rebuild) {
	r.SessionID = j.session.ID
	select {
	case j.records <- r:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal buffer full, dropping rebuilds", "session", j.session.ID)
		}
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for r := range j.records {
		if err := j.store.WriteRebuild(context.Background(), r); err != nil {
			j.failed.Add(1)
			j.logger.Error("journal write failed", "generation", r.Generation, "error", err)
			continue
		}
		j.written.Add(1)
	}
}

// Close flushes queued records and stops the writer. Record must not be
// called after Close.
func (j *Journal) Close() error {
	j.once.Do(func() {
		close(j.records)
	})
	<-j.done

	if n := j.failed.Load(); n > 0 {
		return fmt.Errorf("journal: %d rebuild writes failed", n)
	}
	return nil
}

// JournalStats counts journal activity.
type JournalStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Stats returns the current counters.
func (j *Journal) Stats() JournalStats {
	return JournalStats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
	}
}
