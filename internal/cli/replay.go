package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OmniChip/bandgame/internal/gesture"
	"github.com/OmniChip/bandgame/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - latest session if empty
	List     bool

	RotStability   float64
	ForceStability float64
	DeadZone       float64
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}
	def := gesture.DefaultThresholds()

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Summarize a captured session and re-classify its samples",
		Long: `Read a session from a capture log and report per-band statistics.

Stored raw samples are run through the gesture classifier again with the
given thresholds, and the resulting direction changes are compared with
the ones recorded during play.

Exit codes:
  0 - Replay completed
  2 - Command error (database not found, unknown session, etc.)

Examples:
  bandgame replay --db ./sessions.db
  bandgame replay --db ./sessions.db --list
  bandgame replay --db ./sessions.db --session 0192... --rot-stability 0.3
  bandgame replay --db ./sessions.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite capture log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list sessions and exit")
	cmd.Flags().Float64Var(&opts.RotStability, "rot-stability", def.RotStability, "gyro norm ceiling (deg/s)")
	cmd.Flags().Float64Var(&opts.ForceStability, "force-stability", def.ForceStability, "allowed deviation of the accel norm from 1g")
	cmd.Flags().Float64Var(&opts.DeadZone, "dead-zone", def.DeadZone, "hysteresis margin around bucket edges")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// store.Open creates missing files, so check first.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database), err)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if opts.Format == "json" {
			return out.Document(CLIResponse{Status: "ok", Data: sessions})
		}
		return outputSessionsText(cmd, sessions)
	}

	sessionID := opts.Session
	if sessionID == "" {
		latest, err := st.LatestSession(ctx)
		if errors.Is(err, store.ErrSessionNotFound) {
			if opts.Format == "json" {
				return out.Document(CLIResponse{Status: "ok", Data: nil})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest session", err)
		}
		sessionID = latest.ID
	}

	th := gesture.Thresholds{
		RotStability:   opts.RotStability,
		ForceStability: opts.ForceStability,
		DeadZone:       opts.DeadZone,
	}
	replay, err := st.ReplaySession(ctx, sessionID, th)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", sessionID), err)
	}

	// Output results
	if opts.Format == "json" {
		return out.Document(CLIResponse{Status: "ok", Data: replay})
	}
	return outputReplayText(cmd, replay, th)
}

func outputSessionsText(cmd *cobra.Command, sessions []store.Session) error {
	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tBUS\tEVENTS")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Bus, s.Events)
	}
	return tw.Flush()
}

// outputReplayText outputs the replay result as a per-band table.
func outputReplayText(cmd *cobra.Command, r store.Replay, th gesture.Thresholds) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session %s (%s, %d events)\n", r.Session.ID, r.Session.Bus, r.Session.Events)
	fmt.Fprintf(w, "Thresholds: rot=%g force=%g dead_zone=%g\n\n", th.RotStability, th.ForceStability, th.DeadZone)

	if len(r.Bands) == 0 {
		fmt.Fprintln(w, "No bands in session.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tNAME\tSAMPLES\tSPAN\tRECORDED\tRECLASSIFIED\tAGREE\tREMOVED")
	for _, b := range r.Bands {
		span := b.LastTS.Duration() - b.FirstTS.Duration()
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%d\t%d\t%t\n",
			b.Band, b.Name, b.Samples, span, b.Recorded, b.Reclassified, b.Agree, b.Removed)
	}
	return tw.Flush()
}
