package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OmniChip/bandgame/internal/band"
)

// tilt returns a 1g acceleration vector whose normalized pitch is p.
func tilt(p float64) band.Vec3 {
	theta := p * math.Pi / 2
	return band.Vec3{math.Sin(theta), 0, math.Cos(theta)}
}

func TestPitch(t *testing.T) {
	assert.InDelta(t, 1.0, Pitch(tilt(1)), 1e-9)
	assert.InDelta(t, -1.0, Pitch(tilt(-1)), 1e-9)
	assert.InDelta(t, 0.0, Pitch(tilt(0)), 1e-9)
	assert.InDelta(t, 0.5, Pitch(tilt(0.5)), 1e-9)
}

func TestClassify_Buckets(t *testing.T) {
	tests := []struct {
		pitch float64
		want  band.Direction
	}{
		{-1, band.Down},
		{-0.9, band.Down},
		{-0.5, band.Low},
		{-0.4, band.Low},
		{0, band.Level},
		{0.1, band.Level},
		{0.5, band.High},
		{0.6, band.High},
		{1, band.Up},
	}

	for _, tt := range tests {
		got, ok := Classify(tilt(tt.pitch), band.Vec3{}, band.Unknown)
		assert.True(t, ok, "pitch %v", tt.pitch)
		assert.Equal(t, tt.want, got, "pitch %v", tt.pitch)
	}
}

func TestClassify_DeadZone(t *testing.T) {
	for _, p := range []float64{-0.75, -0.25, 0.25, 0.75, 0.2, -0.7} {
		got, ok := Classify(tilt(p), band.Vec3{}, band.Level)
		assert.False(t, ok, "pitch %v should be ambiguous", p)
		assert.Equal(t, band.Level, got)
	}
}

func TestClassify_Debounce(t *testing.T) {
	dir, ok := Classify(tilt(0.5), band.Vec3{}, band.Unknown)
	assert.True(t, ok)
	assert.Equal(t, band.High, dir)

	// Further samples inside HIGH's zone report nothing.
	for _, p := range []float64{0.5, 0.45, 0.55, 0.62} {
		_, ok := Classify(tilt(p), band.Vec3{}, dir)
		assert.False(t, ok, "pitch %v", p)
	}

	dir, ok = Classify(tilt(1), band.Vec3{}, dir)
	assert.True(t, ok)
	assert.Equal(t, band.Up, dir)
}

func TestClassify_RotationGate(t *testing.T) {
	spin := band.Vec3{0, RotStability * 1.5, 0}
	_, ok := Classify(tilt(1), spin, band.Unknown)
	assert.False(t, ok)

	slow := band.Vec3{RotStability * 0.5, -RotStability * 0.5, 0}
	got, ok := Classify(tilt(1), slow, band.Unknown)
	assert.True(t, ok)
	assert.Equal(t, band.Up, got)
}

func TestClassify_ForceGate(t *testing.T) {
	heavy := tilt(0)
	for i := range heavy {
		heavy[i] *= 1.3
	}
	_, ok := Classify(heavy, band.Vec3{}, band.Unknown)
	assert.False(t, ok)

	light := tilt(0)
	for i := range light {
		light[i] *= 0.9
	}
	got, ok := Classify(light, band.Vec3{}, band.Unknown)
	assert.True(t, ok)
	assert.Equal(t, band.Level, got)
}

func TestThresholds_Custom(t *testing.T) {
	th := DefaultThresholds()
	th.DeadZone = 0.3

	got, ok := th.Classify(tilt(0.28), band.Vec3{}, band.Unknown)
	assert.True(t, ok)
	assert.Equal(t, band.High, got)
}
