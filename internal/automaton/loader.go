package automaton

import (
	"context"
	"log/slog"
)

// Handle controls one loaded program.
type Handle interface {
	// Start begins execution. Starting a running handle is a no-op.
	Start() error
	// Stop halts execution and drives the pins to idle. Safe to repeat.
	Stop() error
	// Push queues one right-aligned word, blocking while the queue is full.
	Push(ctx context.Context, word uint32) error
}

// Loader turns a program and its configuration into a runnable handle.
type Loader interface {
	Load(prog *Program, cfg Config) (Handle, error)
}

// SimLoader loads programs into in-process Machines.
type SimLoader struct {
	Options []MachineOption
	Logger  *slog.Logger

	// OnLoad, when set, receives every machine created. Tests and the capture
	// command use it to attach to the machine behind a Handle.
	OnLoad func(*Machine)
}

// Load implements Loader.
func (l *SimLoader) Load(prog *Program, cfg Config) (Handle, error) {
	opts := l.Options
	if l.Logger != nil {
		opts = append(append([]MachineOption(nil), opts...), WithMachineLogger(l.Logger))
	}
	m, err := NewMachine(prog, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if l.OnLoad != nil {
		l.OnLoad(m)
	}
	return m, nil
}

var _ Handle = (*Machine)(nil)
var _ Loader = (*SimLoader)(nil)
