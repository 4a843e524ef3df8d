package automaton

import (
	"errors"
	"fmt"
)

// ErrFIFOClosed is returned by Push once the input queue has been closed.
var ErrFIFOClosed = errors.New("automaton: input queue closed")

// ErrNotLoaded is returned when a handle is used after its machine was
// released.
var ErrNotLoaded = errors.New("automaton: program not loaded")

// ProgramError reports an invalid instruction table.
type ProgramError struct {
	Program string
	Addr    int
	Message string
}

func (e *ProgramError) Error() string {
	if e.Addr >= 0 {
		return fmt.Sprintf("program %s: instruction %d: %s", e.Program, e.Addr, e.Message)
	}
	return fmt.Sprintf("program %s: %s", e.Program, e.Message)
}

// ConfigError reports an invalid machine configuration. Field names the
// offending Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("automaton config: %s: %s", e.Field, e.Message)
}

// WordError reports a pushed word with bits above the configured width.
type WordError struct {
	Word  uint32
	Width int
}

func (e *WordError) Error() string {
	return fmt.Sprintf("automaton: word %#x does not fit %d bits", e.Word, e.Width)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
