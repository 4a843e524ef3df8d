package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource []byte

// Error codes.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeSyntax   = "CONFIG_SYNTAX"
	ErrCodeSchema   = "CONFIG_SCHEMA"
	ErrCodeInvalid  = "CONFIG_INVALID"
)

// Error is a configuration error. Pos is set when the error can be traced to
// a position in the file.
type Error struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Errors collects every schema violation of one file.
type Errors []*Error

func (e Errors) Error() string {
	lines := make([]string, len(e))
	for i, err := range e {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// Schema returns the embedded CUE schema source.
func Schema() string {
	return string(schemaSource)
}

// validateSchema unifies the file with #Config. It returns Errors when the
// file violates the schema.
func validateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return Errors(fromCUE(ErrCodeSyntax, filename, err))
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return Errors(fromCUE(ErrCodeSyntax, filename, err))
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Errors(fromCUE(ErrCodeSchema, filename, err))
	}
	return nil
}

// fromCUE flattens a CUE error, preferring positions inside the config
// file over positions inside the schema.
func fromCUE(code, filename string, err error) []*Error {
	var out []*Error
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ce := &Error{
			Code:    code,
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Pos:     e.Position(),
		}
		for _, p := range cueerrors.Positions(e) {
			if p.Filename() == filename {
				ce.Pos = p
				break
			}
		}
		out = append(out, ce)
	}
	if len(out) == 0 {
		out = append(out, &Error{Code: code, Message: err.Error()})
	}
	return out
}
