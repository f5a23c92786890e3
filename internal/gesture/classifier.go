// Package gesture turns converted motion samples into discrete pitch
// directions.
//
// Classification is a pure function of one sample and the band's last
// reported direction. A sample yields a direction only when the band is
// steady (low angular rate, acceleration close to 1g) and the pitch sits
// clearly inside one of the five buckets. Only changes are reported.
package gesture

import (
	"math"

	"github.com/OmniChip/bandgame/internal/band"
)

const (
	// RotStability is the angular-rate gate: 200 raw gyro counts in
	// converted units.
	RotStability = 200 / band.GyroDivisor

	// ForceStability bounds |‖accel‖ - 1g|.
	ForceStability = 0.15

	// DeadZone is the largest distance from a bucket center still
	// attributed to that bucket.
	DeadZone = 0.15
)

// Thresholds holds the classifier gates.
type Thresholds struct {
	RotStability   float64 `yaml:"rot_stability" env:"ROT_STABILITY"`
	ForceStability float64 `yaml:"force_stability" env:"FORCE_STABILITY"`
	DeadZone       float64 `yaml:"dead_zone" env:"DEAD_ZONE"`
}

// DefaultThresholds returns the firmware-tuned gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RotStability:   RotStability,
		ForceStability: ForceStability,
		DeadZone:       DeadZone,
	}
}

// Pitch returns the wrist pitch normalized to [-1, 1]: -1 down, 0 level, +1 up.
func Pitch(accel band.Vec3) float64 {
	return math.Atan2(accel[0], math.Hypot(accel[1], accel[2])) * 2 / math.Pi
}

// Classify applies the default thresholds. See Thresholds.Classify.
func Classify(accel, gyro band.Vec3, prev band.Direction) (band.Direction, bool) {
	return DefaultThresholds().Classify(accel, gyro, prev)
}

// Classify returns the direction of the sample and true when it is stable,
// unambiguous and differs from prev. Otherwise it returns prev and false.
func (th Thresholds) Classify(accel, gyro band.Vec3, prev band.Direction) (band.Direction, bool) {
	for _, g := range gyro {
		if math.Abs(g) > th.RotStability {
			return prev, false
		}
	}

	if math.Abs(accel.Norm()-1) > th.ForceStability {
		return prev, false
	}

	dir, ok := th.quantize(Pitch(accel))
	if !ok || dir == prev {
		return prev, false
	}
	return dir, true
}

// quantize rounds pitch to the nearest half unit.
func (th Thresholds) quantize(pitch float64) (band.Direction, bool) {
	bucket := math.Floor((pitch + 1.25) * 2)
	if bucket < 0 || bucket > 4 {
		return band.Unknown, false
	}

	center := (bucket - 2) / 2
	if math.Abs(center-pitch) > th.DeadZone {
		return band.Unknown, false
	}
	return band.Direction(int(bucket) - 2), true
}
