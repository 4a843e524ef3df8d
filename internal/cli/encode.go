package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/railsig/internal/automaton"
	"github.com/roach88/railsig/internal/config"
	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/selectrix"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Config   string
	Protocol string
	Set      []string // addr=value
	Power    string   // "on" | "off" | ""
	Variant  string
	Address  string
}

// EncodeResult is one built frame.
type EncodeResult struct {
	Protocol string   `json:"protocol"`
	Words    []uint32 `json:"words"`
	Digest   string   `json:"digest"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the frame words of a station",
		Long: `Build one frame from a station file (or the default station) and
print the words the automaton would be fed, with the frame digest.

Selectrix frames print one block per line. --set, --power, --variant and
--address override the station file for selectrix only.

Examples:
  railsig encode --set 17=0x55 --set 0=172
  railsig encode --variant differential --power off
  railsig encode --config station.yaml --format json
  railsig encode --protocol dcc`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "station file")
	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "default station of a protocol (sx|dcc|mm|mfx)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "set a selectrix channel (addr=value, repeatable)")
	cmd.Flags().StringVar(&opts.Power, "power", "", "selectrix track power (on|off)")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "selectrix variant (t0t1|differential)")
	cmd.Flags().StringVar(&opts.Address, "address", "", "selectrix block address mode (inverted|plain)")

	return cmd
}

func runEncode(opts *EncodeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.Config, opts.Protocol)
	if err != nil {
		return configFailure(formatter, err)
	}

	values, err := parseChannelValues(opts.Set)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidOption, "invalid --set", err)
	}
	overrides := len(values) > 0 || opts.Power != "" || opts.Variant != "" || opts.Address != ""
	if overrides && cfg.Protocol != config.ProtocolSelectrix {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidOption,
			fmt.Sprintf("--set, --power, --variant and --address apply to selectrix, not %s", cfg.Protocol), nil)
	}
	if opts.Variant != "" {
		cfg.Selectrix.Variant = opts.Variant
	}
	if opts.Address != "" {
		cfg.Selectrix.Address = opts.Address
	}

	src, err := cfg.Open(&automaton.SimLoader{})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEncode, "failed to open station", err)
	}
	if tx := src.Selectrix; tx != nil {
		if err := tx.SetChannels(values); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalidOption, "invalid --set", err)
		}
		switch opts.Power {
		case "":
		case "on":
			tx.SetTrackPower(true)
		case "off":
			tx.SetTrackPower(false)
		default:
			return formatter.Fail(ExitCommandError, ErrCodeInvalidOption, fmt.Sprintf("invalid --power %q: use on or off", opts.Power), nil)
		}
	}

	words, err := src.Station().BuildFrame()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEncode, "failed to build frame", err)
	}
	result := EncodeResult{Protocol: cfg.Protocol, Words: words, Digest: engine.FrameDigest(words)}
	formatter.VerboseLog("Built %d words", len(words))

	var text string
	if tx := src.Selectrix; tx != nil {
		text = selectrix.FormatFrame(words, tx.Encoder().WordsPerBlock())
	} else {
		text = formatWords(words, 8)
	}
	return formatter.Emit(result, text+"digest: "+result.Digest+"\n")
}

// parseChannelValues parses addr=value pairs. Both numbers accept 0x and 0b
// prefixes. Addresses are range-checked by the transmitter.
func parseChannelValues(pairs []string) (map[int]int, error) {
	values := make(map[int]int, len(pairs))
	for _, p := range pairs {
		a, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want addr=value", p)
		}
		addr, err := strconv.ParseInt(strings.TrimSpace(a), 0, 0)
		if err != nil {
			return nil, fmt.Errorf("%q: address: %w", p, err)
		}
		value, err := strconv.ParseUint(strings.TrimSpace(v), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%q: value must be 0..255: %w", p, err)
		}
		values[int(addr)] = int(value)
	}
	return values, nil
}

// formatWords prints words in hex, perLine to a line.
func formatWords(words []uint32, perLine int) string {
	var b strings.Builder
	for i, w := range words {
		if i%perLine == 0 {
			fmt.Fprintf(&b, "%04d:", i)
		}
		fmt.Fprintf(&b, " %08x", w)
		if i%perLine == perLine-1 || i == len(words)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
