package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/OmniChip/bandgame/internal/band"
)

// marshalMeta converts session metadata to JSON TEXT.
// Go's json.Marshal sorts map keys, so output is deterministic.
func marshalMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

// unmarshalMeta converts JSON TEXT back to session metadata.
func unmarshalMeta(s string) (map[string]string, error) {
	meta := map[string]string{}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

// eventRow is the column form of a band.Event. Columns that do not apply
// to the event kind are NULL.
type eventRow struct {
	kind      string
	band      int64
	ts        int64
	name      sql.NullString
	accel     [3]sql.NullFloat64
	gyro      [3]sql.NullFloat64
	direction sql.NullInt64
}

func toRow(e band.Event) (eventRow, error) {
	if uint64(e.TS) > math.MaxInt64 {
		return eventRow{}, fmt.Errorf("timestamp %d out of range", e.TS)
	}
	r := eventRow{
		kind: e.Kind.String(),
		band: int64(e.Band),
		ts:   int64(e.TS),
	}
	switch e.Kind {
	case band.EventAdded:
		r.name = sql.NullString{String: e.Name, Valid: true}
	case band.EventRawSample:
		for i := range 3 {
			r.accel[i] = sql.NullFloat64{Float64: e.Accel[i], Valid: true}
			r.gyro[i] = sql.NullFloat64{Float64: e.Gyro[i], Valid: true}
		}
	case band.EventPitch:
		r.direction = sql.NullInt64{Int64: int64(e.Direction), Valid: true}
	}
	return r, nil
}

func fromRow(r eventRow) (band.Event, error) {
	kind, err := band.ParseEventKind(r.kind)
	if err != nil {
		return band.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e := band.Event{
		Kind: kind,
		Band: band.ID(r.band),
		TS:   band.Timestamp(r.ts),
		Name: r.name.String,
	}
	for i := range 3 {
		e.Accel[i] = r.accel[i].Float64
		e.Gyro[i] = r.gyro[i].Float64
	}
	if r.direction.Valid {
		d := band.Direction(r.direction.Int64)
		if !d.Valid() {
			return band.Event{}, fmt.Errorf("scan event: invalid direction %d", r.direction.Int64)
		}
		e.Direction = d
	}
	return e, nil
}
