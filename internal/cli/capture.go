package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/capture"
	"github.com/roach88/railsig/internal/config"
)

// DefaultCaptureCycles covers more than one selectrix frame.
const DefaultCaptureCycles = 100_000

// CaptureOptions holds flags for the capture and timing commands.
type CaptureOptions struct {
	*RootOptions
	Config     string
	Protocol   string
	Cycles     uint64
	Output     string
	Decimation uint64
}

// CaptureResult describes a written WAV file.
type CaptureResult struct {
	Protocol   string `json:"protocol"`
	Program    string `json:"program"`
	Output     string `json:"output"`
	Pins       []int  `json:"pins"`
	Cycles     uint64 `json:"cycles"`
	SampleRate int    `json:"sample_rate"`
	Decimation uint64 `json:"decimation"`
	Digest     string `json:"digest"`
}

// TimingResult lists the measured pulse widths.
type TimingResult struct {
	Protocol string          `json:"protocol"`
	Program  string          `json:"program"`
	Cycles   uint64          `json:"cycles"`
	Widths   []capture.Width `json:"widths"`
}

func addCaptureFlags(cmd *cobra.Command, opts *CaptureOptions) {
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "station file")
	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "default station of a protocol (sx|dcc|mm|mfx)")
	cmd.Flags().Uint64Var(&opts.Cycles, "cycles", DefaultCaptureCycles, "automaton cycles to simulate")
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Simulate a station and write its pins to a WAV file",
		Long: `Run the station's program on a simulated automaton for a fixed
number of cycles and write the pin levels as 16-bit PCM, one channel per
output pin. Open the file in an audio editor to inspect the waveform.

Examples:
  railsig capture --protocol sx --out sx.wav
  railsig capture --config station.yaml --out dcc.wav --cycles 20000 --decimation 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, cmd)
		},
	}

	addCaptureFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "WAV file to write (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().Uint64Var(&opts.Decimation, "decimation", 0, "cycles per sample (default: keep the rate at or below 192 kHz)")

	return cmd
}

// NewTimingCommand creates the timing command.
func NewTimingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Report the pulse widths a station produces",
		Long: `Run the station's program on a simulated automaton and report every
distinct pulse width per pin, in cycles and microseconds.

Examples:
  railsig timing --protocol dcc
  railsig timing --config station.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTiming(opts, cmd)
		},
	}

	addCaptureFlags(cmd, opts)
	return cmd
}

// record builds the station without starting it and steps a fresh machine
// through its frame.
func record(opts *CaptureOptions, formatter *OutputFormatter) (*config.Config, *capture.Recording, error) {
	cfg, err := loadConfig(opts.Config, opts.Protocol)
	if err != nil {
		return nil, nil, configFailure(formatter, err)
	}
	if opts.Cycles == 0 {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeInvalidOption, "--cycles must be positive", nil)
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, nil, formatter.Fail(ExitFailure, ErrCodeEncode, "no program for station", err)
	}
	src, err := cfg.Open(&automaton.SimLoader{})
	if err != nil {
		return nil, nil, formatter.Fail(ExitFailure, ErrCodeEncode, "failed to open station", err)
	}

	formatter.VerboseLog("Simulating %s for %d cycles", profile.Program.Name, opts.Cycles)
	rec, err := capture.Record(profile, src.Station(), opts.Cycles)
	if err != nil {
		return nil, nil, formatter.Fail(ExitFailure, ErrCodeEncode, "simulation failed", err)
	}
	if rec.Stats.Stalls > 0 {
		formatter.VerboseLog("Automaton stalled %d time(s)", rec.Stats.Stalls)
	}
	return cfg, rec, nil
}

func runCapture(opts *CaptureOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, rec, err := record(opts, formatter)
	if err != nil {
		return err
	}

	decimation := opts.Decimation
	if decimation == 0 {
		decimation = rec.DefaultDecimation()
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create output", err)
	}
	if err := rec.WriteWAV(f, decimation); err != nil {
		f.Close()
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to write WAV", err)
	}
	if err := f.Close(); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to write WAV", err)
	}

	result := CaptureResult{
		Protocol:   cfg.Protocol,
		Program:    rec.Program,
		Output:     opts.Output,
		Pins:       rec.Pins,
		Cycles:     rec.Cycles,
		SampleRate: rec.SampleRate(decimation),
		Decimation: decimation,
		Digest:     rec.Frame.Digest,
	}
	text := fmt.Sprintf("Wrote %s: program %s, pins %v, %d cycles at %d Hz (every %d cycle(s))\n",
		result.Output, result.Program, result.Pins, result.Cycles, result.SampleRate, result.Decimation)
	return formatter.Emit(result, text)
}

func runTiming(opts *CaptureOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, rec, err := record(opts, formatter)
	if err != nil {
		return err
	}

	result := TimingResult{
		Protocol: cfg.Protocol,
		Program:  rec.Program,
		Cycles:   rec.Cycles,
		Widths:   rec.Timing(),
	}
	text := fmt.Sprintf("program %s, %d cycles at %.0f Hz\n", rec.Program, rec.Cycles, rec.Config.Frequency) +
		capture.FormatTiming(result.Widths)
	return formatter.Emit(result, text)
}
