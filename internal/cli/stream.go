package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/config"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
	"github.com/roach88/railsig/internal/statsview"
	"github.com/roach88/railsig/internal/store"
)

// StreamOptions holds flags for the stream command.
type StreamOptions struct {
	*RootOptions
	Config        string
	Protocol      string
	Duration      time.Duration
	Database      string
	Statsview     string
	StatsInterval time.Duration

	// Sessions allows overriding the journal session generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Sessions engine.SessionGenerator
}

// StreamResult summarizes a finished run.
type StreamResult struct {
	Protocol string              `json:"protocol"`
	Session  string              `json:"session,omitempty"`
	Elapsed  string              `json:"elapsed"`
	Stats    engine.Stats        `json:"stats"`
	Journal  *store.JournalStats `json:"journal,omitempty"`
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreamOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream a station on the simulated automaton",
		Long: `Load the station's program into a simulated automaton and stream
frames into it until the duration elapses or Ctrl-C is pressed.

Selectrix frames are journaled to a SQLite database when --db (or
stream.journal in the station file) is set; check the journal later with
'railsig verify'.

Examples:
  railsig stream --config station.yaml --duration 10s
  railsig stream --config station.yaml --db journal.db --statsview
  railsig stream --protocol dcc --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "station file")
	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "default station of a protocol (sx|dcc|mm|mfx)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (default: station file, else until Ctrl-C)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (default: station file)")
	cmd.Flags().StringVar(&opts.Statsview, "statsview", "", "serve runtime charts on this address")
	cmd.Flags().Lookup("statsview").NoOptDefVal = statsview.DefaultAddress
	cmd.Flags().DurationVar(&opts.StatsInterval, "stats-interval", 5*time.Second, "how often to log streaming stats")

	return cmd
}

func runStream(opts *StreamOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.Config, opts.Protocol)
	if err != nil {
		return configFailure(formatter, err)
	}

	duration, err := cfg.Duration()
	if err != nil {
		return configFailure(formatter, err)
	}
	if opts.Duration > 0 {
		duration = opts.Duration
	}
	dbPath := cfg.Stream.Journal
	if opts.Database != "" {
		dbPath = opts.Database
	}
	statsAddr := cfg.Stream.Statsview
	if opts.Statsview != "" {
		statsAddr = opts.Statsview
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		journal *store.Journal
		sources *config.Sources
	)
	engineOpts := []engine.Option{engine.WithLogger(logger)}

	if dbPath != "" && cfg.Protocol != config.ProtocolSelectrix {
		logger.Warn("journal records selectrix sessions only, not journaling", "protocol", cfg.Protocol)
		dbPath = ""
	}
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		st, err := store.Open(dbPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()

		enc, err := cfg.Selectrix.Encoder()
		if err != nil {
			return configFailure(formatter, err)
		}
		gen := opts.Sessions
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		labels := cfg.Selectrix.LabelMap()
		for k, v := range cfg.Stream.Labels {
			labels[k] = v
		}
		journal, err = store.NewJournal(ctx, st, selectrix.NewSession(gen.Generate(), enc, labels),
			store.WithJournalLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to start journal", err)
		}
		sessionID := journal.Session().ID
		engineOpts = append(engineOpts, engine.WithRebuildHook(func(f engine.Frame) {
			journal.Record(sources.Selectrix.Record(sessionID, f))
		}))
		logger.Info("journal session started", "session", sessionID)
	}

	sources, err = cfg.Open(&automaton.SimLoader{Logger: logger}, engineOpts...)
	if err != nil {
		closeJournal(journal, logger)
		return formatter.Fail(ExitFailure, ErrCodeStream, "failed to open station", err)
	}
	station := sources.Station()

	if statsAddr != "" {
		viewer := statsview.Launch(statsAddr, logger)
		defer viewer.Stop()
	}

	started := time.Now()
	if err := station.Start(ctx); err != nil {
		closeJournal(journal, logger)
		return formatter.Fail(ExitFailure, ErrCodeStream, "failed to start streaming", err)
	}
	logger.Info("streaming", "protocol", cfg.Protocol, "duration", duration)
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Streaming %s. Press Ctrl-C to stop.\n", cfg.Protocol)
	}

	waitStreaming(ctx, station, opts.StatsInterval, logger)

	stopErr := station.Stop()
	result := StreamResult{
		Protocol: cfg.Protocol,
		Elapsed:  time.Since(started).Round(time.Millisecond).String(),
		Stats:    station.Stats(),
	}
	if journal != nil {
		closeErr := journal.Close()
		js := journal.Stats()
		result.Session = journal.Session().ID
		result.Journal = &js
		if closeErr != nil {
			return formatter.Fail(ExitFailure, ErrCodeJournal, "journal incomplete", closeErr)
		}
	}
	if stopErr != nil && !errors.Is(stopErr, context.Canceled) {
		return formatter.Fail(ExitFailure, ErrCodeStream, "streaming failed", stopErr)
	}

	logger.Info("streaming stopped gracefully")
	return formatter.Emit(result, formatStreamResult(result))
}

func closeJournal(j *store.Journal, logger *slog.Logger) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		logger.Error("error closing journal", "error", err)
	}
}

// waitStreaming blocks until ctx is done, logging stats every interval.
func waitStreaming(ctx context.Context, station config.Station, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := station.Stats()
			logger.Info("stream stats",
				"generation", st.Generation,
				"frames", st.FramesStreamed,
				"words", st.WordsPushed,
				"rebuild_errors", st.RebuildErrors,
			)
		}
	}
}

func formatStreamResult(r StreamResult) string {
	s := fmt.Sprintf("Streamed %d frame(s), %d word(s) in %s\n", r.Stats.FramesStreamed, r.Stats.WordsPushed, r.Elapsed)
	s += fmt.Sprintf("  generation %d, %d rebuild(s), %d failed\n", r.Stats.Generation, r.Stats.Rebuilds, r.Stats.RebuildErrors)
	if r.Stats.Digest != "" {
		s += fmt.Sprintf("  digest %s\n", r.Stats.Digest)
	}
	if r.Journal != nil {
		s += fmt.Sprintf("  journal session %s: %d written, %d dropped\n", r.Session, r.Journal.Written, r.Journal.Dropped)
	}
	return s
}
