package band

import "fmt"

// EventKind distinguishes domain event variants.
type EventKind int

const (
	// EventAdded announces a band whose identification completed.
	EventAdded EventKind = iota + 1
	// EventRemoved announces the loss of an identified band.
	EventRemoved
	// EventRawSample carries one converted sensor sample. It doubles as the
	// band's time heartbeat.
	EventRawSample
	// EventPitch reports a change of the band's stable pitch direction.
	EventPitch
	// EventCalibrated reports that a band finished zero-offset calibration.
	EventCalibrated
)

var eventKindNames = map[EventKind]string{
	EventAdded:      "added",
	EventRemoved:    "removed",
	EventRawSample:  "raw",
	EventPitch:      "pitch",
	EventCalibrated: "calibrated",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is a tagged domain event. Which fields are meaningful depends on Kind:
//
//	Added:      Band, TS, Name
//	Removed:    Band
//	RawSample:  Band, TS, Accel (g), Gyro (deg/s)
//	Pitch:      Band, TS, Direction
//	Calibrated: Band, TS
type Event struct {
	Kind      EventKind
	Band      ID
	TS        Timestamp
	Name      string
	Accel     Vec3
	Gyro      Vec3
	Direction Direction
}

// Added builds an EventAdded.
func Added(id ID, ts Timestamp, name string) Event {
	return Event{Kind: EventAdded, Band: id, TS: ts, Name: name}
}

// Removed builds an EventRemoved.
func Removed(id ID) Event {
	return Event{Kind: EventRemoved, Band: id}
}

// RawSample builds an EventRawSample.
func RawSample(id ID, ts Timestamp, accel, gyro Vec3) Event {
	return Event{Kind: EventRawSample, Band: id, TS: ts, Accel: accel, Gyro: gyro}
}

// Pitch builds an EventPitch.
func Pitch(id ID, ts Timestamp, dir Direction) Event {
	return Event{Kind: EventPitch, Band: id, TS: ts, Direction: dir}
}

// Calibrated builds an EventCalibrated.
func Calibrated(id ID, ts Timestamp) Event {
	return Event{Kind: EventCalibrated, Band: id, TS: ts}
}

func (e Event) String() string {
	switch e.Kind {
	case EventAdded:
		return fmt.Sprintf("added band=%d ts=%d name=%q", e.Band, e.TS, e.Name)
	case EventRemoved:
		return fmt.Sprintf("removed band=%d", e.Band)
	case EventPitch:
		return fmt.Sprintf("pitch band=%d ts=%d dir=%s", e.Band, e.TS, e.Direction)
	default:
		return fmt.Sprintf("%s band=%d ts=%d", e.Kind, e.Band, e.TS)
	}
}
