package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/store"
	"github.com/roach88/railsig/internal/testutil"
)

// Harness is the scenario execution engine.
//
// The transmitter is never started: the harness calls BuildFrame itself
// after every write, exactly as the streamer does between frames, so the
// sequence of frames is deterministic. Every frame is journaled to an
// in-memory store.
type Harness struct {
	store   *store.Store
	session store.Session
	tx      *selectrix.Transmitter
	clock   *engine.Clock
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Create fresh in-memory journal and a stopped transmitter
// 2. Apply setup and build the first frame
// 3. Apply flow steps, checking expected errors, building after each
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for the journal writes.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	enc, err := scenario.Encoder.Encoder()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := testutil.NewFixedSessionGenerator(scenario.Session)
	sess := selectrix.NewSession(sessions.Generate(), enc, scenario.Labels)
	if err := st.WriteSession(ctx, sess); err != nil {
		return nil, err
	}

	h := &Harness{
		store:   st,
		session: sess,
		tx:      selectrix.NewTransmitter(testutil.NewFakeHandle(1), enc, engine.WithLogger(logger)),
		clock:   engine.NewClock(),
		logger:  logger,
	}

	result := NewResult()
	result.Session = sess.ID
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	result.Table, result.Power = h.tx.Snapshot()

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Session: sess,
		Encoder: enc,
		Source:  h.tx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup, result *Result) error {
	if err := h.tx.SetChannels(setup.Channels); err != nil {
		return err
	}
	args := map[string]any{}
	if len(setup.Channels) > 0 {
		args["channels"] = channelArgs(setup.Channels)
	}
	if setup.Power != nil {
		h.tx.SetTrackPower(*setup.Power)
		args["power"] = *setup.Power
	}

	digest, err := h.rebuild(ctx, result)
	if err != nil {
		return err
	}
	result.Trace = append(result.Trace, TraceEvent{Seq: h.clock.Current(), Op: OpSetup, Args: args, Digest: digest})
	return nil
}

// executeFlow applies each step, then rebuilds the frame if it succeeded.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		event := TraceEvent{Op: step.Op()}

		var err error
		if step.Power != nil {
			h.tx.SetTrackPower(*step.Power)
			event.Args = map[string]any{"on": *step.Power}
		} else {
			err = h.tx.SetChannels(step.Set)
			event.Args = channelArgs(step.Set)
		}

		code := errorCode(err)
		if err != nil && code == "" {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		if code != step.ExpectError {
			result.AddError(fmt.Sprintf("flow step %d: expected error %q, got %q", i, step.ExpectError, code))
		}

		if err != nil {
			event.Error = code
			event.Seq = h.clock.Current()
			result.Frames = append(result.Frames, result.Final())
		} else {
			digest, err := h.rebuild(ctx, result)
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			event.Seq = h.clock.Current()
			event.Digest = digest
		}
		result.Trace = append(result.Trace, event)

		h.logger.Info("flow step completed", "step", i, "op", event.Op, "digest", event.Digest, "error", event.Error)
	}
	return nil
}

// rebuild builds a frame the way the streamer does and journals it.
func (h *Harness) rebuild(ctx context.Context, result *Result) (string, error) {
	words, err := h.tx.BuildFrame()
	if err != nil {
		return "", err
	}
	frame := engine.NewFrame(h.clock.Next(), words)
	if err := h.store.WriteRebuild(ctx, h.tx.Record(h.session.ID, *frame)); err != nil {
		return "", err
	}
	result.Frames = append(result.Frames, frame.Words)
	return frame.Digest, nil
}

// channelArgs converts a channel write to canonical form: decimal address
// keys, values as written.
func channelArgs(values map[int]int) map[string]any {
	out := make(map[string]any, len(values))
	for a, v := range values {
		out[strconv.Itoa(a)] = v
	}
	return out
}

func errorCode(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return ""
}
