package device

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
)

// SimConfig configures a SimBus.
type SimConfig struct {
	Bands  int   `yaml:"bands" env:"BANDS"`
	RateHz int   `yaml:"rate_hz" env:"RATE_HZ"`
	Seed   int64 `yaml:"seed" env:"SEED"`

	// Hold is the mean time a simulated wrist stays at one pitch.
	Hold time.Duration `yaml:"hold" env:"HOLD"`
}

// DefaultSimConfig returns two bands at 50Hz.
func DefaultSimConfig() SimConfig {
	return SimConfig{Bands: 2, RateHz: 50, Seed: 1, Hold: 1500 * time.Millisecond}
}

// SimBus simulates wrists tilting between the five pitch buckets. All
// simulated bands share one clock, so their timestamps are comparable.
type SimBus struct {
	cfg    SimConfig
	rng    *rand.Rand
	logger *slog.Logger

	devices  []*simDevice
	produced uint64
}

// NewSimBus creates a simulated bus.
func NewSimBus(cfg SimConfig, logger *slog.Logger) *SimBus {
	if cfg.RateHz <= 0 {
		cfg.RateHz = DefaultSimConfig().RateHz
	}
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultSimConfig().Hold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SimBus{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}
}

// simDevice is one simulated wrist.
type simDevice struct {
	index  int
	logger *slog.Logger

	pitch    float64 // current normalized pitch
	target   float64
	holdLeft time.Duration

	vibes atomic.Uint64
}

// Vibrate records the command. Simulated bands have no motor.
func (d *simDevice) Vibrate(effect uint64) error {
	d.vibes.Add(1)
	d.logger.Debug("sim band vibe", "index", d.index, "effect", fmt.Sprintf("0x%X", effect))
	return nil
}

// Vibes returns how many waveform commands the device received.
func (d *simDevice) Vibes() uint64 {
	return d.vibes.Load()
}

// Run announces cfg.Bands devices and streams samples at cfg.RateHz.
func (b *SimBus) Run(ctx context.Context, h Handler) error {
	interval := time.Second / time.Duration(b.cfg.RateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for i := 0; i < b.cfg.Bands; i++ {
		d := &simDevice{index: i, logger: b.logger, target: b.pickTarget()}
		d.pitch = d.target
		d.holdLeft = b.holdTime()
		b.devices = append(b.devices, d)

		h(Found{Device: d})
		h(Identified{Device: d, Identity: Identity{
			Name:      fmt.Sprintf("SimBand %d", i+1),
			Timestamp: band.Timestamp(time.Since(start).Microseconds()),
			IDs:       IDs{Registry: 3, Vendor: 0x1209, Product: 0xB00D, Version: 1},
		}})
	}
	b.logger.Info("sim bus started", "bands", b.cfg.Bands, "rate_hz", b.cfg.RateHz)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("sim bus stopped", "produced", b.produced)
			return ctx.Err()
		case now := <-ticker.C:
			ts := band.Timestamp(now.Sub(start).Microseconds())
			for _, d := range b.devices {
				h(Sample{Device: d, Reading: b.step(d, interval, ts)})
				b.produced++
			}
		}
	}
}

// step advances d by dt and returns its reading.
func (b *SimBus) step(d *simDevice, dt time.Duration, ts band.Timestamp) Reading {
	const slew = 2.0 // pitch units per second

	var rate float64
	if d.pitch != d.target {
		delta := slew * dt.Seconds()
		if math.Abs(d.target-d.pitch) <= delta {
			d.pitch = d.target
		} else {
			delta = math.Copysign(delta, d.target-d.pitch)
			d.pitch += delta
		}
		rate = delta / dt.Seconds()
	} else {
		d.holdLeft -= dt
		if d.holdLeft <= 0 {
			d.target = b.pickTarget()
			d.holdLeft = b.holdTime()
		}
	}

	theta := d.pitch * math.Pi / 2
	noise := func(scale float64) int32 { return int32((b.rng.Float64() - 0.5) * scale) }

	return Reading{
		Accel: band.Raw3{
			int32(math.Sin(theta)*band.AccelDivisor) + noise(20),
			noise(20),
			int32(math.Cos(theta)*band.AccelDivisor) + noise(20),
		},
		Gyro: band.Raw3{
			noise(40),
			int32(rate*90*band.GyroDivisor) + noise(40),
			noise(40),
		},
		Timestamp: ts,
	}
}

func (b *SimBus) pickTarget() float64 {
	return float64(band.Directions[b.rng.Intn(len(band.Directions))]) / 2
}

func (b *SimBus) holdTime() time.Duration {
	return b.cfg.Hold/2 + time.Duration(b.rng.Int63n(int64(b.cfg.Hold)))
}
