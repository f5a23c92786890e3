package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OmniChip/bandgame/internal/config"
	"github.com/OmniChip/bandgame/internal/device"
	"github.com/OmniChip/bandgame/internal/game"
	"github.com/OmniChip/bandgame/internal/host"
	"github.com/OmniChip/bandgame/internal/pipeline"
	"github.com/OmniChip/bandgame/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Bus     string
	Auto    bool
	Capture string
	Seed    int64

	// OpenBus allows overriding bus construction (for testing).
	// If nil, the bus is built from the configuration.
	OpenBus busOpener
}

// RoundResult is printed when a round finishes.
type RoundResult struct {
	Round   int     `json:"round"`
	Length  int     `json:"length"`
	Misses  int     `json:"misses"`
	Seconds float64 `json:"seconds"`
}

func (r RoundResult) String() string {
	return fmt.Sprintf("Round %d: %d steps, %d misses, %.1fs", r.Round, r.Length, r.Misses, r.Seconds)
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run the game with connected bands",
		Long: `Run the game loop against a device bus.

Bands are registered as they are identified. Press Enter to start a round;
with --auto a new round starts whenever the bands have been idle for the
configured delay. Input events can be captured to a SQLite log for the
replay command.

Example:
  bandgame play
  bandgame play --bus serial --config bandgame.yaml
  bandgame play --auto --capture ./sessions.db --seed 42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Bus, "bus", "", "device bus (sim|serial), overrides config")
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "start rounds automatically")
	cmd.Flags().StringVar(&opts.Capture, "capture", "", "path to SQLite capture log, overrides config")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "sequence seed, overrides config (0 = random)")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Bus != "" {
		cfg.Bus.Kind = opts.Bus
	}
	if opts.Auto {
		cfg.Host.AutoStart = true
	}
	if opts.Capture != "" {
		cfg.Capture.Path = opts.Capture
	}
	if opts.Seed != 0 {
		cfg.Game.Seed = opts.Seed
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	logger := newLogger(opts.RootOptions, cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	seed := cfg.Game.Seed
	if seed == 0 {
		if seed, err = game.NewSeed(); err != nil {
			return WrapExitError(ExitFailure, "failed to seed sequence generator", err)
		}
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder host.Recorder
	if cfg.Capture.Path != "" {
		st, err := store.Open(cfg.Capture.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open capture log", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing capture log", "error", closeErr)
			}
		}()

		session, err := st.OpenSession(ctx, cfg.Bus.Kind, time.Now(), map[string]string{
			"seed":      strconv.FormatInt(seed, 10),
			"time_unit": cfg.Game.TimeUnit.String(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open capture session", err)
		}
		logger.Info("capturing input", "path", cfg.Capture.Path, "session", session.ID())
		recorder = session
	}

	// The bus is opened last so no earlier failure leaves a port open.
	bus, err := openDeviceBus(opts.OpenBus, cfg.Bus, logger)
	if err != nil {
		return err
	}
	defer closeBus(bus, logger)

	pipe := pipeline.New(bus, pipelineOptions(cfg.Input, logger)...)

	rounds := 0
	eng := game.New(game.NewPicker(seed), pipe, game.SystemClock{},
		game.WithMinLength(cfg.Game.MinLength),
		game.WithTimeUnit(cfg.Game.TimeUnit),
		game.WithLogger(logger),
		game.WithObserver(func(s game.Summary) {
			rounds++
			_ = out.Success(RoundResult{
				Round:   rounds,
				Length:  s.Length,
				Misses:  s.Misses,
				Seconds: s.Elapsed.Seconds(),
			})
		}),
	)

	loopOpts := []host.Option{
		host.WithFrameRate(cfg.Host.FrameRate),
		host.WithGreeting(cfg.Game.Greet),
		host.WithLogger(logger),
	}
	if cfg.Host.AutoStart {
		loopOpts = append(loopOpts, host.WithAutoStart(cfg.Host.AutoDelay))
	}
	if recorder != nil {
		loopOpts = append(loopOpts, host.WithRecorder(recorder))
	}

	loop := host.New(pipe, eng, pipe, loopOpts...)

	pipe.Start(ctx)
	defer pipe.Stop()

	go readStartRequests(ctx, cmd.InOrStdin(), loop, logger)

	logger.Info("game ready", "bus", cfg.Bus.Kind, "seed", seed, "auto_start", cfg.Host.AutoStart)
	if !cfg.Host.AutoStart {
		out.VerboseLog("Press Enter to start a round. Ctrl-C quits.")
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "device bus failed", err)
	}

	logger.Info("game stopped", "rounds", rounds)
	return nil
}

type busOpener func(cfg config.BusConfig, logger *slog.Logger) (device.Bus, error)

// openDeviceBus opens the bus with open, or with newBus when open is nil.
func openDeviceBus(open busOpener, cfg config.BusConfig, logger *slog.Logger) (device.Bus, error) {
	if open == nil {
		open = newBus
	}
	bus, err := open(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open device bus", err)
	}
	return bus, nil
}

// closeBus releases buses that hold an OS handle.
func closeBus(bus device.Bus, logger *slog.Logger) {
	c, ok := bus.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Debug("device bus close", "error", err)
	}
}

// newBus builds the configured device bus.
func newBus(cfg config.BusConfig, logger *slog.Logger) (device.Bus, error) {
	switch cfg.Kind {
	case config.BusSim:
		return device.NewSimBus(cfg.Sim, logger), nil
	case config.BusSerial:
		bus, err := device.OpenSerial(cfg.Serial, logger)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}

func pipelineOptions(in config.InputConfig, logger *slog.Logger) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithThresholds(in.Thresholds),
		pipeline.WithHapticQueue(in.HapticQueue),
	}
	if in.Calibrate {
		opts = append(opts, pipeline.WithCalibration(in.CalibrationSamples))
	}
	return opts
}

// readStartRequests requests a round for every line read from r. It returns
// at EOF; a blocked read outlives ctx until the process exits.
func readStartRequests(ctx context.Context, r io.Reader, loop *host.Loop, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		loop.RequestStart()
	}
	if err := sc.Err(); err != nil {
		logger.Debug("stdin closed", "error", err)
	}
}
