package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniChip/bandgame/internal/config"
	"github.com/OmniChip/bandgame/internal/device"
	"github.com/OmniChip/bandgame/internal/store"
)

// writeSimConfig writes a settings file for a fast simulated bus.
func writeSimConfig(t *testing.T, bands int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bandgame.yaml")
	content := `
game:
  time_unit: 50ms
bus:
  kind: sim
  sim:
    bands: ` + strconv.Itoa(bands) + `
    rate_hz: 200
host:
  frame_rate: 100
  auto_delay: 0s
log:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPlayCommand_CapturesSession(t *testing.T) {
	cfgPath := writeSimConfig(t, 2)
	dbPath := filepath.Join(t.TempDir(), "capture.db")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text", Config: cfgPath})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"--capture", dbPath, "--seed", "5", "--auto"})

	require.NoError(t, cmd.ExecuteContext(ctx))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sim", sessions[0].Bus)
	assert.Equal(t, "5", sessions[0].Meta["seed"])
	assert.Equal(t, "50ms", sessions[0].Meta["time_unit"])
	assert.Positive(t, sessions[0].Events)

	replay, err := st.ReplaySession(context.Background(), sessions[0].ID, config.Default().Input.Thresholds)
	require.NoError(t, err)
	require.Len(t, replay.Bands, 2)
	assert.Equal(t, "SimBand 1", replay.Bands[0].Name)
	assert.Positive(t, replay.Bands[0].Samples)
}

func TestPlayCommand_InvalidBus(t *testing.T) {
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--bus", "bluetooth"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `bus.kind must be "sim" or "serial", got "bluetooth"`)
}

func TestPlayCommand_BusOpenFailure(t *testing.T) {
	opts := &PlayOptions{RootOptions: &RootOptions{Format: "text"}}
	opts.OpenBus = func(config.BusConfig, *slog.Logger) (device.Bus, error) {
		return nil, errors.New("no such port")
	}
	cmd := NewPlayCommand(opts.RootOptions)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := runPlay(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no such port")
}

func TestPlayCommand_CaptureFailureOpensNoBus(t *testing.T) {
	opened := false
	opts := &PlayOptions{
		RootOptions: &RootOptions{Format: "text"},
		Capture:     t.TempDir(), // a directory is not a database
		OpenBus: func(config.BusConfig, *slog.Logger) (device.Bus, error) {
			opened = true
			return newHubBus(), nil
		},
	}
	cmd := NewPlayCommand(opts.RootOptions)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := runPlay(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open capture log")
	assert.False(t, opened)
}

func TestPlayCommand_ClosesBusOnExit(t *testing.T) {
	bus := newHubBus()
	opts := &PlayOptions{
		RootOptions: &RootOptions{Format: "text"},
		OpenBus: func(config.BusConfig, *slog.Logger) (device.Bus, error) {
			return bus, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := NewPlayCommand(opts.RootOptions)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetContext(ctx)

	require.NoError(t, runPlay(opts, cmd))
	assert.True(t, bus.closed)
}

func TestNewBus(t *testing.T) {
	cfg := config.Default().Bus

	bus, err := newBus(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &device.SimBus{}, bus)

	cfg.Kind = "carrier-pigeon"
	_, err = newBus(cfg, nil)
	require.Error(t, err)
}

func TestPipelineOptions(t *testing.T) {
	in := config.Default().Input
	assert.Len(t, pipelineOptions(in, slog.Default()), 3)

	in.Calibrate = true
	assert.Len(t, pipelineOptions(in, slog.Default()), 4)
}

func TestRoundResult_String(t *testing.T) {
	r := RoundResult{Round: 1, Length: 4, Misses: 0, Seconds: 7.26}
	assert.Equal(t, "Round 1: 4 steps, 0 misses, 7.3s", r.String())
}
