package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/gesture"
)

// BandReplay summarizes one band's captured input.
type BandReplay struct {
	Band    band.ID        `json:"band"`
	Name    string         `json:"name"`
	Samples int            `json:"samples"`
	FirstTS band.Timestamp `json:"first_ts"`
	LastTS  band.Timestamp `json:"last_ts"`

	// Recorded counts the direction changes classified at capture time.
	Recorded int `json:"recorded"`
	// Reclassified counts the direction changes the given thresholds
	// produce from the same samples.
	Reclassified int `json:"reclassified"`
	// Agree counts reclassified changes matching a recorded change at the
	// same timestamp and direction.
	Agree int `json:"agree"`

	Removed bool `json:"removed"`
}

// Replay summarizes a captured session.
type Replay struct {
	Session Session      `json:"session"`
	Bands   []BandReplay `json:"bands"`
}

// ReplaySession reads a session and re-runs gesture classification over
// its stored samples with th.
func (s *Store) ReplaySession(ctx context.Context, sessionID string, th gesture.Thresholds) (Replay, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return Replay{}, fmt.Errorf("replay session: %w", err)
	}

	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return Replay{}, fmt.Errorf("replay session: %w", err)
	}

	return Replay{Session: sess, Bands: Analyze(events, th)}, nil
}

type pitchKey struct {
	ts  band.Timestamp
	dir band.Direction
}

// Analyze summarizes events per band, in band ID order.
func Analyze(events []band.Event, th gesture.Thresholds) []BandReplay {
	stats := make(map[band.ID]*BandReplay)
	recorded := make(map[band.ID]map[pitchKey]bool)
	prev := make(map[band.ID]band.Direction)

	get := func(id band.ID) *BandReplay {
		st, ok := stats[id]
		if !ok {
			st = &BandReplay{Band: id}
			stats[id] = st
			recorded[id] = make(map[pitchKey]bool)
			prev[id] = band.Unknown
		}
		return st
	}

	// Recorded pitch events follow their sample, so collect them first.
	for _, e := range events {
		if e.Kind == band.EventPitch {
			get(e.Band).Recorded++
			recorded[e.Band][pitchKey{e.TS, e.Direction}] = true
		}
	}

	for _, e := range events {
		st := get(e.Band)
		switch e.Kind {
		case band.EventAdded:
			st.Name = e.Name
		case band.EventRemoved:
			st.Removed = true
		case band.EventRawSample:
			if st.Samples == 0 {
				st.FirstTS = e.TS
			}
			st.Samples++
			st.LastTS = e.TS

			dir, changed := th.Classify(e.Accel, e.Gyro, prev[e.Band])
			if changed {
				prev[e.Band] = dir
				st.Reclassified++
				if recorded[e.Band][pitchKey{e.TS, dir}] {
					st.Agree++
				}
			}
		}
	}

	out := make([]BandReplay, 0, len(stats))
	for _, st := range stats {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b BandReplay) int {
		return cmp.Compare(a.Band, b.Band)
	})
	return out
}
