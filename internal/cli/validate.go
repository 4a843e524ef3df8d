package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/config"
)

// ValidationError is one reported config problem.
type ValidationError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Protocol string            `json:"protocol,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a station file",
		Long: `Validate a station file against the embedded schema and the
cross-field rules (pin overlaps, duplicate locos, durations) without
loading any program.

Exit codes:
  0 - Config is valid
  1 - Config has errors
  2 - Config file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err == nil {
		formatter.VerboseLog("Loaded %s", path)
		return formatter.Emit(ValidationResult{Valid: true, Protocol: cfg.Protocol},
			fmt.Sprintf("✓ %s is valid (protocol %s)\n", path, cfg.Protocol))
	}

	problems := validationErrors(err)
	if len(problems) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load config", err)
	}
	if problems[0].Code == config.ErrCodeNotFound {
		return formatter.Fail(ExitCommandError, config.ErrCodeNotFound, problems[0].Message, nil)
	}

	result := ValidationResult{Valid: false, Errors: problems}
	if opts.Format == "json" {
		if err := formatter.Error(ErrCodeConfig, fmt.Sprintf("%d config error(s)", len(problems)), result); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "✗ %s has %d error(s):\n", path, len(problems))
		for _, p := range problems {
			fmt.Fprintf(&b, "  %s\n", p.String())
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), b.String()); err != nil {
			return err
		}
	}
	return NewExitError(ExitFailure, "config validation failed")
}

// validationErrors flattens config errors. It returns nil for errors that
// did not come from the config package.
func validationErrors(err error) []ValidationError {
	var list config.Errors
	if errors.As(err, &list) {
		out := make([]ValidationError, len(list))
		for i, e := range list {
			out[i] = toValidationError(e)
		}
		return out
	}
	var single *config.Error
	if errors.As(err, &single) {
		return []ValidationError{toValidationError(single)}
	}
	return nil
}

func toValidationError(e *config.Error) ValidationError {
	v := ValidationError{Code: e.Code, Path: e.Path, Message: e.Message}
	if e.Pos.IsValid() {
		v.File, v.Line, v.Column = e.Pos.Filename(), e.Pos.Line(), e.Pos.Column()
	}
	return v
}

func (v ValidationError) String() string {
	msg := v.Message
	if v.Path != "" {
		msg = v.Path + ": " + msg
	}
	if v.Line > 0 {
		return fmt.Sprintf("line %d:%d: [%s] %s", v.Line, v.Column, v.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", v.Code, msg)
}
