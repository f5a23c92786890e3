// Package haptic encodes band vibration waveforms.
//
// A waveform is a 64-bit little-endian byte string read by the band
// firmware: a strength byte (0x01 weak, 0x4B strong), optionally followed
// by a delay byte (0x80 + ticks) before the next strength byte. Up to four
// pulses fit in one command.
package haptic

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/OmniChip/bandgame/internal/band"
)

// Effect is a packed waveform command.
type Effect uint64

const (
	weak       = 0x01
	strong     = 0x4B
	pulseDelay = 0x80 + 10

	// MaxPulses is the number of pulses one Effect can carry.
	MaxPulses = 4
)

// Fixed patterns.
const (
	// Accept acknowledges a matched step: one weak pulse.
	Accept Effect = weak
	// Reject acknowledges a missed step. It shares the LEVEL cue.
	Reject Effect = 0x37
	// Greeting is played to a band when it joins.
	Greeting Effect = 0x4B8A018A018A4B
)

// Pulses packs n pulses (at most MaxPulses). Pulse i is strong when bit i
// of pattern is set, weak otherwise.
func Pulses(pattern uint, n int) Effect {
	if n > MaxPulses {
		n = MaxPulses
	}

	var e Effect
	for i := 0; i < n; i++ {
		strength := Effect(weak)
		if (pattern>>i)&1 != 0 {
			strength = strong
		}
		e |= strength << (16 * i)
	}
	for i := 1; i < n; i++ {
		e |= Effect(pulseDelay) << (8 + 16*(i-1))
	}
	return e
}

// ForDirection returns the cue announcing d. Unknown directions map to 0
// (no vibration).
func ForDirection(d band.Direction) Effect {
	switch d {
	case band.Down:
		return Pulses(3, 2)
	case band.Low:
		return Pulses(1, 2)
	case band.Level:
		return Reject
	case band.High:
		return Pulses(2, 2)
	case band.Up:
		return Pulses(0, 2)
	default:
		return 0
	}
}

// Outcome returns Accept or Reject.
func Outcome(ok bool) Effect {
	if ok {
		return Accept
	}
	return Reject
}

// Reverse plays e backwards: the byte order is reversed and the leading
// zero bytes this produces are dropped.
func (e Effect) Reverse() Effect {
	r := bits.ReverseBytes64(uint64(e))
	if r == 0 {
		return 0
	}
	return Effect(r >> ((bits.TrailingZeros64(r) / 8) * 8))
}

func (e Effect) String() string {
	return fmt.Sprintf("0x%X", uint64(e))
}

// Parse accepts a direction name, "accept", "reject", "greeting", or a
// numeric waveform (0x-prefixed hex or decimal).
func Parse(s string) (Effect, error) {
	switch strings.ToLower(s) {
	case "accept":
		return Accept, nil
	case "reject":
		return Reject, nil
	case "greeting":
		return Greeting, nil
	}

	if d, err := band.ParseDirection(s); err == nil {
		return ForDirection(d), nil
	}

	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("parse effect %q: %w", s, err)
	}
	return Effect(v), nil
}
