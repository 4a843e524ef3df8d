package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/railsig/internal/automaton"
)

// FrameSource produces the words of a complete frame from the current
// application state. BuildFrame is called only from the streamer goroutine
// and must take its own snapshot of any state the application mutates.
type FrameSource interface {
	BuildFrame() ([]uint32, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func() ([]uint32, error)

// BuildFrame implements FrameSource.
func (f FrameSourceFunc) BuildFrame() ([]uint32, error) { return f() }

// Streamer is the single producer feeding an automaton handle.
//
// Each cycle of its loop rebuilds the frame if the dirty flag is set, then
// pushes every word of the active frame. Push blocks while the automaton's
// queue is full; that block is the only rate control.
//
// Thread-safety model:
//   - MarkDirty, Active, Stats: safe from any goroutine, never block
//   - Start, Stop: safe from any goroutine, serialized internally
//   - the loop goroutine is the only caller of BuildFrame and Push
//
// INVARIANTS:
//   - the dirty flag is cleared only by the loop, immediately before it reads
//     the source, so a mutation that lands during a rebuild re-dirties it
//   - the active frame is replaced by pointer swap, never edited
//   - words are pushed whole; Stop abandons the loop between words
type Streamer struct {
	source FrameSource
	handle automaton.Handle
	clock  *Clock
	logger *slog.Logger
	hook   func(Frame)

	dirty  atomic.Bool
	active atomic.Pointer[Frame]
	wake   chan struct{} // buffered, size 1

	mu      sync.Mutex
	running bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	errMu sync.Mutex
	err   error

	rebuilds       atomic.Uint64
	rebuildErrors  atomic.Uint64
	wordsPushed    atomic.Uint64
	framesStreamed atomic.Uint64
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = l
	}
}

// WithRebuildHook registers fn to receive every successfully rebuilt frame.
// fn runs on the streamer goroutine between frames, so it must return
// quickly; the frame journal hands frames off through a buffered channel.
func WithRebuildHook(fn func(Frame)) Option {
	return func(s *Streamer) {
		s.hook = fn
	}
}

// WithClock sets the generation clock. Default: NewClock().
func WithClock(c *Clock) Option {
	return func(s *Streamer) {
		s.clock = c
	}
}

// New creates a stopped streamer for source and handle.
func New(source FrameSource, handle automaton.Handle, opts ...Option) *Streamer {
	s := &Streamer{
		source: source,
		handle: handle,
		clock:  NewClock(),
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats is a snapshot of the streamer counters.
type Stats struct {
	Running        bool   `json:"running"`
	Generation     int64  `json:"generation"`
	Digest         string `json:"digest,omitempty"`
	Rebuilds       uint64 `json:"rebuilds"`
	RebuildErrors  uint64 `json:"rebuild_errors"`
	WordsPushed    uint64 `json:"words_pushed"`
	FramesStreamed uint64 `json:"frames_streamed"`
}

// Stats returns the current counters.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	running := s.running
	if running {
		select {
		case <-s.done:
			running = false
		default:
		}
	}
	s.mu.Unlock()

	st := Stats{
		Running:        running,
		Rebuilds:       s.rebuilds.Load(),
		RebuildErrors:  s.rebuildErrors.Load(),
		WordsPushed:    s.wordsPushed.Load(),
		FramesStreamed: s.framesStreamed.Load(),
	}
	if f := s.active.Load(); f != nil {
		st.Generation = f.Generation
		st.Digest = f.Digest
	}
	return st
}

// Active returns the frame currently being streamed, or nil before the first
// successful rebuild.
func (s *Streamer) Active() *Frame {
	return s.active.Load()
}

// MarkDirty requests a rebuild before the next frame is pushed. Mutators
// call it after their write. Never blocks.
func (s *Streamer) MarkDirty() {
	s.dirty.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Dirty reports whether a rebuild is pending.
func (s *Streamer) Dirty() bool {
	return s.dirty.Load()
}

// Start starts the automaton, then the streaming loop. The first frame is
// built by the loop, not by Start, so Start never blocks on the source.
//
// The loop runs until Stop or until ctx is cancelled.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return &Error{Code: ErrCodeAlreadyStarted, Message: "streamer is running"}
	}
	if err := s.handle.Start(); err != nil {
		return fmt.Errorf("start automaton: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.started = true
	s.setErr(nil)
	s.MarkDirty()

	s.logger.Info("streamer starting", "generation", s.clock.Current())
	go s.run(ctx, s.done)
	return nil
}

// Stop is two-phase: it cancels the loop and waits for it (an in-flight Push
// is abandoned, never split), then stops the automaton, which halts and
// idles its pins. Stopping a stopped streamer is a no-op; stopping one that
// was never started returns NOT_STARTED.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if !s.started {
			return &Error{Code: ErrCodeNotStarted, Message: "streamer was never started"}
		}
		return nil
	}

	s.cancel()
	<-s.done
	s.running = false

	if err := s.handle.Stop(); err != nil {
		return fmt.Errorf("stop automaton: %w", err)
	}
	s.logger.Info("streamer stopped",
		"generation", s.clock.Current(),
		"frames", s.framesStreamed.Load(),
		"words", s.wordsPushed.Load(),
	)
	return nil
}

// Done is closed when the loop of the current run exits.
func (s *Streamer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Err returns the error that ended the loop, or nil if it is still running
// or was stopped normally. After a failure the automaton keeps running
// until Stop.
func (s *Streamer) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Streamer) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// run is the streaming loop.
//
// ERROR HANDLING: a failed rebuild is logged and the previous frame keeps
// streaming ("log and continue"); the dirty flag is restored so the rebuild
// is retried before the next frame. A failed push ends the loop and is
// reported by Err.
func (s *Streamer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if s.dirty.Swap(false) {
			if err := s.rebuild(); err != nil {
				s.dirty.Store(true)
				failures++
				level := slog.LevelDebug
				if failures == 1 {
					level = slog.LevelError
				}
				s.logger.Log(ctx, level, "rebuild failed", "error", err, "consecutive", failures)
			} else {
				failures = 0
			}
		}

		frame := s.active.Load()
		if frame == nil || len(frame.Words) == 0 {
			// nothing to stream until a rebuild succeeds
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		if err := s.push(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}
		s.framesStreamed.Add(1)
	}
}

// push sends every word of frame in order.
func (s *Streamer) push(ctx context.Context, frame *Frame) error {
	for i, w := range frame.Words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.handle.Push(ctx, w); err != nil {
			if errors.Is(err, automaton.ErrFIFOClosed) {
				return &Error{Code: ErrCodeQueueClosed, Message: fmt.Sprintf("word %d of generation %d", i, frame.Generation), Err: err}
			}
			return fmt.Errorf("push word %d of generation %d: %w", i, frame.Generation, err)
		}
		s.wordsPushed.Add(1)
	}
	return nil
}

// rebuild reads the source and publishes a new frame.
func (s *Streamer) rebuild() error {
	words, err := s.source.BuildFrame()
	if err != nil {
		s.rebuildErrors.Add(1)
		return NewBuildError(s.clock.Current(), err)
	}

	frame := NewFrame(s.clock.Next(), words)
	s.active.Store(frame)
	s.rebuilds.Add(1)

	s.logger.Debug("frame rebuilt",
		"generation", frame.Generation,
		"words", len(frame.Words),
		"digest", frame.Digest[:16],
	)
	if s.hook != nil {
		s.hook(*frame)
	}
	return nil
}

func (s *Streamer) fail(err error) {
	s.logger.Error("streamer loop ended", "error", err)
	s.setErr(err)
}
