// Package config loads bandgame settings.
//
// Settings come from defaults, then an optional YAML file, then
// BANDGAME_* environment variables. Command-line flags are applied last by
// the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/OmniChip/bandgame/internal/device"
	"github.com/OmniChip/bandgame/internal/gesture"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "BANDGAME_"

// Bus kinds.
const (
	BusSim    = "sim"
	BusSerial = "serial"
)

// Config is the complete settings tree.
type Config struct {
	Game    GameConfig    `yaml:"game" envPrefix:"GAME_"`
	Input   InputConfig   `yaml:"input" envPrefix:"INPUT_"`
	Bus     BusConfig     `yaml:"bus" envPrefix:"BUS_"`
	Host    HostConfig    `yaml:"host" envPrefix:"HOST_"`
	Capture CaptureConfig `yaml:"capture" envPrefix:"CAPTURE_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// GameConfig configures rounds.
type GameConfig struct {
	TimeUnit  time.Duration `yaml:"time_unit" env:"TIME_UNIT"`
	MinLength int           `yaml:"min_length" env:"MIN_LENGTH"`
	// Seed fixes the sequence draws. Zero draws a random seed.
	Seed  int64 `yaml:"seed" env:"SEED"`
	Greet bool  `yaml:"greet" env:"GREET"`
}

// InputConfig configures the input pipeline.
type InputConfig struct {
	Calibrate          bool               `yaml:"calibrate" env:"CALIBRATE"`
	CalibrationSamples int                `yaml:"calibration_samples" env:"CALIBRATION_SAMPLES"`
	HapticQueue        int                `yaml:"haptic_queue" env:"HAPTIC_QUEUE"`
	Thresholds         gesture.Thresholds `yaml:"thresholds" envPrefix:"THRESHOLD_"`
}

// BusConfig selects and configures the device bus.
type BusConfig struct {
	Kind   string              `yaml:"kind" env:"KIND"`
	Serial device.SerialConfig `yaml:"serial" envPrefix:"SERIAL_"`
	Sim    device.SimConfig    `yaml:"sim" envPrefix:"SIM_"`
}

// HostConfig configures the frame loop.
type HostConfig struct {
	FrameRate int           `yaml:"frame_rate" env:"FRAME_RATE"`
	AutoStart bool          `yaml:"auto_start" env:"AUTO_START"`
	AutoDelay time.Duration `yaml:"auto_delay" env:"AUTO_DELAY"`
}

// CaptureConfig configures the capture log. An empty path disables it.
type CaptureConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Game: GameConfig{
			TimeUnit:  time.Second,
			MinLength: 3,
		},
		Input: InputConfig{
			CalibrationSamples: 100,
			HapticQueue:        32,
			Thresholds:         gesture.DefaultThresholds(),
		},
		Bus: BusConfig{
			Kind:   BusSim,
			Serial: device.SerialConfig{Port: "/dev/ttyACM0", Baud: 115200},
			Sim:    device.DefaultSimConfig(),
		},
		Host: HostConfig{
			FrameRate: 60,
			AutoDelay: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies BANDGAME_* environment overrides to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Game.TimeUnit > 0, "game.time_unit must be positive, got %s", c.Game.TimeUnit)
	check(c.Game.MinLength > 0, "game.min_length must be positive, got %d", c.Game.MinLength)

	check(!c.Input.Calibrate || c.Input.CalibrationSamples > 0,
		"input.calibration_samples must be positive, got %d", c.Input.CalibrationSamples)
	check(c.Input.HapticQueue > 0, "input.haptic_queue must be positive, got %d", c.Input.HapticQueue)
	th := c.Input.Thresholds
	check(th.RotStability > 0 && th.ForceStability > 0 && th.DeadZone > 0,
		"input.thresholds must be positive, got %+v", th)
	check(th.DeadZone <= 0.25, "input.thresholds.dead_zone must not exceed half a bucket, got %g", th.DeadZone)

	switch c.Bus.Kind {
	case BusSim:
		check(c.Bus.Sim.Bands > 0, "bus.sim.bands must be positive, got %d", c.Bus.Sim.Bands)
		check(c.Bus.Sim.RateHz > 0, "bus.sim.rate_hz must be positive, got %d", c.Bus.Sim.RateHz)
	case BusSerial:
		check(c.Bus.Serial.Port != "", "bus.serial.port is required")
		check(c.Bus.Serial.Baud > 0, "bus.serial.baud must be positive, got %d", c.Bus.Serial.Baud)
	default:
		errs = append(errs, fmt.Errorf("bus.kind must be %q or %q, got %q", BusSim, BusSerial, c.Bus.Kind))
	}

	check(c.Host.FrameRate > 0, "host.frame_rate must be positive, got %d", c.Host.FrameRate)
	check(c.Host.AutoDelay >= 0, "host.auto_delay must not be negative, got %s", c.Host.AutoDelay)

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	format := strings.ToLower(c.Log.Format)
	check(format == "text" || format == "json", "log.format must be text or json, got %q", c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses the configured level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
