package store

import (
	"context"
	"fmt"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
)

// SessionWriter appends one session's events. It is not safe for
// concurrent use; the frame loop owns it.
type SessionWriter struct {
	store *Store
	id    string
	next  int64
}

// OpenSession inserts a session row and returns a writer for its events.
func (s *Store) OpenSession(ctx context.Context, bus string, startedAt time.Time, meta map[string]string) (*SessionWriter, error) {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	id := s.ids.Generate()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, bus, meta)
		VALUES (?, ?, ?, ?)
	`, id, startedAt.UTC().Format(time.RFC3339Nano), bus, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &SessionWriter{store: s, id: id, next: 1}, nil
}

// ID returns the session ID.
func (w *SessionWriter) ID() string {
	return w.id
}

// Record appends a drained batch. Each call is one transaction.
func (w *SessionWriter) Record(ctx context.Context, events []band.Event) error {
	if err := w.store.AppendEvents(ctx, w.id, w.next, events); err != nil {
		return err
	}
	w.next += int64(len(events))
	return nil
}

// AppendEvents inserts events with consecutive seq values starting at
// firstSeq, atomically. A seq collision fails the whole batch.
func (s *Store) AppendEvents(ctx context.Context, sessionID string, firstSeq int64, events []band.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(session_id, seq, kind, band, ts, name, ax, ay, az, gx, gy, gz, direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		r, err := toRow(e)
		if err != nil {
			return fmt.Errorf("append events: seq %d: %w", firstSeq+int64(i), err)
		}
		_, err = stmt.ExecContext(ctx,
			sessionID,
			firstSeq+int64(i),
			r.kind,
			r.band,
			r.ts,
			r.name,
			r.accel[0], r.accel[1], r.accel[2],
			r.gyro[0], r.gyro[1], r.gyro[2],
			r.direction,
		)
		if err != nil {
			return fmt.Errorf("append events: seq %d: %w", firstSeq+int64(i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}
