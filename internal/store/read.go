package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session describes one capture session.
type Session struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"started_at"`
	Bus       string            `json:"bus"`
	Meta      map[string]string `json:"meta,omitempty"`
	Events    int               `json:"events"`
}

// ListSessions returns every session, oldest first.
//
// Returns an empty slice (not nil) if no sessions exist.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.bus, s.meta, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.started_at, s.bus, s.meta, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return sessions[len(sessions)-1], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess      Session
		startedAt string
		meta      string
	)
	if err := sc.Scan(&sess.ID, &startedAt, &sess.Bus, &meta, &sess.Events); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t

	sess.Meta, err = unmarshalMeta(meta)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: %w", sess.ID, err)
	}
	return sess, nil
}

// ReadEvents returns a session's events in capture order.
//
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]band.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, band, ts, name, ax, ay, az, gx, gy, gz, direction
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []band.Event{}
	for rows.Next() {
		var r eventRow
		err := rows.Scan(
			&r.kind, &r.band, &r.ts, &r.name,
			&r.accel[0], &r.accel[1], &r.accel[2],
			&r.gyro[0], &r.gyro[1], &r.gyro[2],
			&r.direction,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
