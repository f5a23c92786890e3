// Package band defines the data shared by the input pipeline and the game
// engine: band identifiers, pitch directions, device timestamps, physical
// unit conversion and the domain events that cross from the hardware
// goroutine to the frame-tick consumer.
package band

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ID identifies a band for the lifetime of a session. IDs start at 1 and are
// never reused while the session runs; 0 is never a valid band.
type ID uint32

// Timestamp is a device-local monotonic timestamp in microseconds.
type Timestamp uint64

// Seconds returns the timestamp in seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t) / 1e6
}

// Duration returns the timestamp as a duration since the device epoch.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// Direction is a discretized wrist pitch.
type Direction int8

const (
	Down  Direction = -2
	Low   Direction = -1
	Level Direction = 0
	High  Direction = 1
	Up    Direction = 2

	// Unknown marks a band that has not reported a stable direction yet.
	Unknown Direction = math.MinInt8
)

// Directions lists the five pitch buckets from lowest to highest.
var Directions = [...]Direction{Down, Low, Level, High, Up}

var directionNames = [...]string{"DOWN", "LOW", "LEVEL", "HIGH", "UP"}

// Valid reports whether d is one of the five buckets.
func (d Direction) Valid() bool {
	return d >= Down && d <= Up
}

func (d Direction) String() string {
	if !d.Valid() {
		return "UNKNOWN"
	}
	return directionNames[d-Down]
}

// ParseDirection parses a bucket name, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if strings.EqualFold(s, name) {
			return Directions[i], nil
		}
	}
	return Unknown, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
