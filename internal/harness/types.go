package harness

import (
	"github.com/roach88/railsig/internal/selectrix"
)

// TraceEvent records one applied write and the frame rebuilt after it.
type TraceEvent struct {
	Seq  int64          `json:"seq"`
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`

	// Digest of the frame rebuilt after the write; empty when it failed.
	Digest string `json:"digest,omitempty"`

	// Error is the error code of a failed write.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expected error matched and every assertion held.
	Pass bool `json:"pass"`

	// Session is the journal session the frames were recorded under.
	Session string `json:"session"`

	// Trace contains the setup and every flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`

	// Frames holds the words built after setup (index 0) and after each
	// flow step (index i+1). A failed step repeats the previous frame.
	Frames [][]uint32 `json:"-"`

	// Table and Power are the final transmitter state.
	Table selectrix.ChannelTable `json:"-"`
	Power bool                   `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Final returns the last built frame.
func (r *Result) Final() []uint32 {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}
