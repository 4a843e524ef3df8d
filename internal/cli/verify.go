package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/store"
)

// replayers re-encode journaled state, per session protocol.
var replayers = map[string]store.EncodeFunc{
	selectrix.Protocol: selectrix.Replay,
}

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Sessions []store.Report `json:"sessions"`
	Total    int            `json:"total"`
	Checked  int            `json:"checked"`
	AllOK    bool           `json:"all_ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-encode journaled frames and check they reproduce",
		Long: `Re-encode every journaled rebuild from its stored channel state with
the session's encoder settings, and compare against the stored words and
digest. Encoding is deterministic, so any difference means the encoder
changed or the journal is corrupt.

Exit codes:
  0 - Every rebuild reproduced
  1 - One or more rebuilds differ
  2 - Command error (database not found, unknown session, etc.)

Examples:
  railsig verify --db journal.db
  railsig verify --db journal.db --session 0192f0a0-...
  railsig verify --db journal.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "verify specific session only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openJournal(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	var sessions []store.Session
	if opts.Session != "" {
		sess, err := st.ReadSession(ctx, opts.Session)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read session", err)
		}
		sessions = []store.Session{sess}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to list sessions", err)
		}
	}

	result := VerifyResult{
		Sessions: make([]store.Report, 0, len(sessions)),
		Total:    len(sessions),
		AllOK:    true,
	}
	for _, sess := range sessions {
		report, err := verifySession(ctx, st, sess)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to verify session %s", sess.ID), err)
		}
		formatter.VerboseLog("Session %s: %d rebuild(s) checked", sess.ID, report.Checked)

		result.Sessions = append(result.Sessions, report)
		result.Checked += report.Checked
		if !report.OK() {
			result.AllOK = false
		}
	}

	if opts.Format == "json" {
		return outputVerifyJSON(formatter, result)
	}
	return outputVerifyText(cmd, result, opts.Verbose)
}

// openJournal opens an existing journal. store.Open would create a missing
// file.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func verifySession(ctx context.Context, st *store.Store, sess store.Session) (store.Report, error) {
	encode, ok := replayers[sess.Protocol]
	if !ok {
		encode = func(sess store.Session, _ store.State) ([]uint32, error) {
			return nil, fmt.Errorf("no encoder for protocol %q", sess.Protocol)
		}
	}
	return st.Verify(ctx, sess.ID, encode)
}

func outputVerifyJSON(formatter *OutputFormatter, result VerifyResult) error {
	if result.AllOK {
		return formatter.Success(result)
	}
	if err := formatter.Error(ErrCodeMismatch, "journal verification failed", result); err != nil {
		return err
	}
	// Mismatch = exit code 1
	return NewExitError(ExitFailure, "journal verification failed")
}

func outputVerifyText(cmd *cobra.Command, result VerifyResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Verify Summary: %d session(s), %d rebuild(s)\n", result.Total, result.Checked)
	fmt.Fprintln(w)

	for _, r := range result.Sessions {
		status := "✓"
		if !r.OK() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, r.SessionID)
		fmt.Fprintf(w, "  Rebuilds: %d checked, %d mismatched\n", r.Checked, len(r.Mismatches))

		shown := r.Mismatches
		if !verbose && len(shown) > 3 {
			shown = shown[:3]
		}
		for _, m := range shown {
			fmt.Fprintf(w, "  generation %d: %s\n", m.Generation, m.Reason)
		}
		if len(shown) < len(r.Mismatches) {
			fmt.Fprintf(w, "  ... %d more (use --verbose)\n", len(r.Mismatches)-len(shown))
		}
		fmt.Fprintln(w)
	}

	if result.AllOK {
		fmt.Fprintln(w, "✓ All journaled frames reproduce")
		return nil
	}

	fmt.Fprintln(w, "✗ Journal verification failed")
	return NewExitError(ExitFailure, "journal verification failed")
}
