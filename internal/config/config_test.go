package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniChip/bandgame/internal/gesture"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bandgame.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BusSim, cfg.Bus.Kind)
	assert.Equal(t, time.Second, cfg.Game.TimeUnit)
	assert.Equal(t, 3, cfg.Game.MinLength)
	assert.Equal(t, gesture.DefaultThresholds(), cfg.Input.Thresholds)
	assert.Equal(t, 60, cfg.Host.FrameRate)
	assert.Empty(t, cfg.Capture.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
game:
  time_unit: 500ms
  min_length: 8
  seed: 42
  greet: true
input:
  calibrate: true
  thresholds:
    force_stability: 0.2
bus:
  kind: serial
  serial:
    port: /dev/ttyUSB1
host:
  auto_start: true
capture:
  path: capture.db
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Game.TimeUnit)
	assert.Equal(t, 8, cfg.Game.MinLength)
	assert.Equal(t, int64(42), cfg.Game.Seed)
	assert.True(t, cfg.Game.Greet)
	assert.True(t, cfg.Input.Calibrate)
	assert.InDelta(t, 0.2, cfg.Input.Thresholds.ForceStability, 1e-12)
	assert.InDelta(t, gesture.DeadZone, cfg.Input.Thresholds.DeadZone, 1e-12, "unset keys keep defaults")
	assert.Equal(t, BusSerial, cfg.Bus.Kind)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Bus.Serial.Port)
	assert.Equal(t, 115200, cfg.Bus.Serial.Baud)
	assert.True(t, cfg.Host.AutoStart)
	assert.Equal(t, "capture.db", cfg.Capture.Path)

	lvl, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "bus:\n  sim:\n    bands: 4\n")
	t.Setenv("BANDGAME_BUS_SIM_BANDS", "6")
	t.Setenv("BANDGAME_GAME_TIME_UNIT", "250ms")
	t.Setenv("BANDGAME_INPUT_THRESHOLD_DEAD_ZONE", "0.1")
	t.Setenv("BANDGAME_CAPTURE_PATH", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Bus.Sim.Bands)
	assert.Equal(t, 250*time.Millisecond, cfg.Game.TimeUnit)
	assert.InDelta(t, 0.1, cfg.Input.Thresholds.DeadZone, 1e-12)
	assert.Equal(t, "/tmp/x.db", cfg.Capture.Path)
}

func TestLoad_EnvError(t *testing.T) {
	t.Setenv("BANDGAME_HOST_FRAME_RATE", "fast")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "game: [1, 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "host:\n  frame_rte: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
	assert.Contains(t, err.Error(), "field frame_rte not found")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown bus", func(c *Config) { c.Bus.Kind = "bluetooth" }, "bus.kind"},
		{"zero frame rate", func(c *Config) { c.Host.FrameRate = 0 }, "host.frame_rate"},
		{"negative time unit", func(c *Config) { c.Game.TimeUnit = -time.Second }, "game.time_unit"},
		{"zero sim rate", func(c *Config) { c.Bus.Sim.RateHz = 0 }, "bus.sim.rate_hz"},
		{"serial without port", func(c *Config) { c.Bus.Kind = BusSerial; c.Bus.Serial.Port = "" }, "bus.serial.port"},
		{"calibration without samples", func(c *Config) { c.Input.Calibrate = true; c.Input.CalibrationSamples = 0 }, "calibration_samples"},
		{"wide dead zone", func(c *Config) { c.Input.Thresholds.DeadZone = 0.3 }, "dead_zone"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Host.FrameRate = 0
	cfg.Game.MinLength = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host.frame_rate")
	assert.Contains(t, err.Error(), "game.min_length")
}
