package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string // default: latest session
	Channel  int    // -1: every rebuild
}

// ChannelChange is one channel whose value differs from the previous rebuild.
type ChannelChange struct {
	Address int    `json:"address"`
	Label   string `json:"label,omitempty"`
	From    uint8  `json:"from"`
	To      uint8  `json:"to"`
}

// JournalEntry is one rebuild in the timeline.
type JournalEntry struct {
	Generation int64           `json:"generation"`
	Digest     string          `json:"digest"`
	Words      int             `json:"words"`
	Power      bool            `json:"power"`
	PowerFlip  bool            `json:"power_changed,omitempty"`
	Changes    []ChannelChange `json:"changes,omitempty"`
}

// JournalResult holds the timeline of one session.
type JournalResult struct {
	Session  string            `json:"session"`
	Protocol string            `json:"protocol"`
	Encoder  map[string]string `json:"encoder,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
	Version  string            `json:"engine_version"`
	Timeline []JournalEntry    `json:"timeline"`
	Rebuilds int               `json:"rebuilds"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the rebuild timeline of a journal session",
		Long: `Show every journaled rebuild of a session in generation order, with
the channels and power flag that changed since the rebuild before it.

The output includes:
- Session: protocol, encoder settings, labels, engine version
- Timeline: one entry per rebuild with its digest and changes

Examples:
  railsig journal --db journal.db
  railsig journal --db journal.db --session 0192f0a0-... --channel 17
  railsig journal --db journal.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (default: latest)")
	cmd.Flags().IntVar(&opts.Channel, "channel", -1, "only rebuilds that changed this channel")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openJournal(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	var sess store.Session
	if opts.Session != "" {
		sess, err = st.ReadSession(ctx, opts.Session)
	} else {
		sess, err = st.LatestSession(ctx)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read session", err)
	}

	rebuilds, err := st.ReadRebuilds(ctx, sess.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read rebuilds", err)
	}

	result := JournalResult{
		Session:  sess.ID,
		Protocol: sess.Protocol,
		Encoder:  sess.Encoder,
		Labels:   sess.Labels,
		Version:  sess.EngineVersion,
		Timeline: buildTimeline(rebuilds, sess.Labels, opts.Channel),
		Rebuilds: len(rebuilds),
	}

	if opts.Format == "json" {
		return outputJournalJSON(cmd, result)
	}
	return outputJournalText(cmd, result, opts.Verbose)
}

// buildTimeline diffs each rebuild against the one before it. The first
// rebuild is diffed against an all-zero table. When channel is not -1, only
// rebuilds changing that channel are kept.
func buildTimeline(rebuilds []store.Rebuild, labels map[string]string, channel int) []JournalEntry {
	timeline := []JournalEntry{}
	var prev store.State
	for i, r := range rebuilds {
		entry := JournalEntry{
			Generation: r.Generation,
			Digest:     r.Digest,
			Words:      len(r.Words),
			Power:      r.State.Power,
			PowerFlip:  i > 0 && prev.Power != r.State.Power,
		}

		matched := channel < 0
		for addr, v := range r.State.Channels {
			var old uint8
			if addr < len(prev.Channels) {
				old = prev.Channels[addr]
			}
			if old == v {
				continue
			}
			entry.Changes = append(entry.Changes, ChannelChange{
				Address: addr,
				Label:   labels[strconv.Itoa(addr)],
				From:    old,
				To:      v,
			})
			if addr == channel {
				matched = true
			}
		}
		prev = r.State

		if matched {
			timeline = append(timeline, entry)
		}
	}
	return timeline
}

func outputJournalJSON(cmd *cobra.Command, result JournalResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status:    "ok",
		Data:      result,
		SessionID: result.Session,
	})
}

func outputJournalText(cmd *cobra.Command, result JournalResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", result.Session)
	fmt.Fprintf(w, "Protocol: %s (engine %s)\n", result.Protocol, result.Version)
	if verbose {
		for _, k := range sortedKeys(result.Encoder) {
			fmt.Fprintf(w, "  %s: %s\n", k, result.Encoder[k])
		}
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No rebuilds found.")
		return nil
	}

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		digest := e.Digest
		if !verbose && len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(w, "  [%d] %s  %d words", e.Generation, digest, e.Words)
		if e.PowerFlip {
			fmt.Fprintf(w, "  power %s", onOff(e.Power))
		}
		fmt.Fprintln(w)
		for _, c := range e.Changes {
			name := strconv.Itoa(c.Address)
			if c.Label != "" {
				name += " (" + c.Label + ")"
			}
			fmt.Fprintf(w, "      %s: 0x%02x -> 0x%02x\n", name, c.From, c.To)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rebuilds: %d shown, %d total\n", len(result.Timeline), result.Rebuilds)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
