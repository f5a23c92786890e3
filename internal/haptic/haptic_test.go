package haptic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniChip/bandgame/internal/band"
)

func TestPulses(t *testing.T) {
	assert.Equal(t, Effect(0x01), Pulses(0, 1))
	assert.Equal(t, Effect(0x4B), Pulses(1, 1))
	assert.Equal(t, Effect(0x4B8A4B), Pulses(3, 2))
	assert.Equal(t, Effect(0x018A4B), Pulses(1, 2))
	assert.Equal(t, Effect(0x4B8A01), Pulses(2, 2))
	assert.Equal(t, Effect(0x018A01), Pulses(0, 2))
	assert.Equal(t, Effect(0x4B8A4B8A4B8A4B), Pulses(0xF, 4))
	assert.Equal(t, Pulses(0xF, 4), Pulses(0xF, 9), "pulse count is capped")
	assert.Equal(t, Effect(0), Pulses(1, 0))
}

func TestForDirection(t *testing.T) {
	want := map[band.Direction]Effect{
		band.Down:  0x4B8A4B,
		band.Low:   0x018A4B,
		band.Level: 0x37,
		band.High:  0x4B8A01,
		band.Up:    0x018A01,
	}
	for d, e := range want {
		assert.Equal(t, e, ForDirection(d), d.String())
	}
	assert.Equal(t, Effect(0), ForDirection(band.Unknown))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, Effect(0x01), Outcome(true))
	assert.Equal(t, Effect(0x37), Outcome(false))
}

func TestReverse(t *testing.T) {
	assert.Equal(t, Greeting, Greeting.Reverse())
	assert.Equal(t, ForDirection(band.Low), ForDirection(band.High).Reverse())
	assert.Equal(t, Effect(0x37), Effect(0x37).Reverse())
	assert.Equal(t, Effect(0), Effect(0).Reverse())
}

func TestParse(t *testing.T) {
	tests := map[string]Effect{
		"accept":   Accept,
		"REJECT":   Reject,
		"greeting": Greeting,
		"up":       ForDirection(band.Up),
		"Down":     ForDirection(band.Down),
		"0x4b8a01": 0x4B8A01,
		"55":       55,
	}
	for in, want := range tests {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("buzz")
	assert.Error(t, err)
}

func TestEffect_String(t *testing.T) {
	assert.Equal(t, "0x4B8A01", Effect(0x4B8A01).String())
}
