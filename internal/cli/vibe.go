package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/haptic"
	"github.com/OmniChip/bandgame/internal/pipeline"
)

// vibeLinger is how long the pipeline stays up after the request so the
// dispatcher can deliver it.
const vibeLinger = 250 * time.Millisecond

// VibeOptions holds flags for the vibe command.
type VibeOptions struct {
	*RootOptions
	Band    uint32
	Pattern string
	Reverse bool
	Bus     string
	Wait    time.Duration

	// OpenBus allows overriding bus construction (for testing).
	OpenBus busOpener
}

// VibeResult reports a sent waveform.
type VibeResult struct {
	Band   band.ID `json:"band"`
	Name   string  `json:"name"`
	Effect string  `json:"effect"`
}

func (r VibeResult) String() string {
	return fmt.Sprintf("Sent %s to band %d (%s)", r.Effect, r.Band, r.Name)
}

// NewVibeCommand creates the vibe command.
func NewVibeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VibeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vibe",
		Short: "Send one waveform to a band",
		Long: `Send a single haptic waveform to a band once it has been identified.

The pattern is a direction cue (down, low, level, high, up), accept,
reject, greeting, or a raw waveform such as 0x4B8A01.

Exit codes:
  0 - Waveform sent
  1 - Band did not appear in time
  2 - Command error (bad pattern, bus unavailable, etc.)

Examples:
  bandgame vibe --band 1 --pattern up
  bandgame vibe --band 2 --pattern greeting --reverse
  bandgame vibe --band 1 --pattern 0x4B8A4B --bus serial`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVibe(opts, cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Band, "band", 0, "band ID (required)")
	_ = cmd.MarkFlagRequired("band")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "waveform name or value (required)")
	_ = cmd.MarkFlagRequired("pattern")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "play the pattern backwards")
	cmd.Flags().StringVar(&opts.Bus, "bus", "", "device bus (sim|serial), overrides config")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 10*time.Second, "how long to wait for the band")

	return cmd
}

func runVibe(opts *VibeOptions, cmd *cobra.Command) error {
	effect, err := haptic.Parse(opts.Pattern)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid pattern", err)
	}
	if opts.Reverse {
		effect = effect.Reverse()
	}
	target := band.ID(opts.Band)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Bus != "" {
		cfg.Bus.Kind = opts.Bus
		if err := cfg.Validate(); err != nil {
			return WrapExitError(ExitCommandError, "invalid settings", err)
		}
	}

	logger := newLogger(opts.RootOptions, cfg.Log, cmd.ErrOrStderr())
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	bus, err := openDeviceBus(opts.OpenBus, cfg.Bus, logger)
	if err != nil {
		return err
	}
	defer closeBus(bus, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The pipeline outlives the wait so the dispatcher can still deliver.
	pipe := pipeline.New(bus, pipeline.WithLogger(logger))
	pipe.Start(ctx)
	defer pipe.Stop()

	out.VerboseLog("Waiting for band %d...", target)
	waitCtx, cancel := context.WithTimeout(ctx, opts.Wait)
	name, err := waitForBand(waitCtx, pipe, target)
	cancel()
	if err != nil {
		msg := fmt.Sprintf("band %d not found", target)
		_ = out.Fail(CLIError{Code: "E_BAND_NOT_FOUND", Message: msg, Details: map[string]string{"wait": opts.Wait.String()}})
		return WrapExitError(ExitFailure, msg, err)
	}

	pipe.Vibrate(target, effect)
	select {
	case <-time.After(vibeLinger):
	case <-ctx.Done():
	}

	return out.Success(VibeResult{Band: target, Name: name, Effect: effect.String()})
}

// waitForBand drains the pipeline until target is added. It returns the
// band's name.
func waitForBand(ctx context.Context, pipe *pipeline.Pipeline, target band.ID) (string, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		var (
			name  string
			found bool
		)
		pipe.Drain(func(e band.Event) {
			if e.Kind == band.EventAdded && e.Band == target {
				name, found = e.Name, true
			}
		})
		if found {
			return name, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-pipe.Done():
			if err := pipe.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("device bus closed")
		case <-ticker.C:
		}
	}
}
