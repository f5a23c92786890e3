package store

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
)

var started = time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)

func TestOpenSession_GeneratesUUIDv7(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	w, err := s.OpenSession(ctx, "sim", started, nil)
	if err != nil {
		t.Fatalf("OpenSession() failed: %v", err)
	}

	id := w.ID()
	if len(id) != 36 || id[14] != '7' {
		t.Errorf("session id %q is not a UUIDv7", id)
	}
}

func TestRecord_AssignsConsecutiveSeq(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(&sequentialIDs{}))
	ctx := context.Background()

	w, err := s.OpenSession(ctx, "sim", started, map[string]string{"bands": "2"})
	if err != nil {
		t.Fatalf("OpenSession() failed: %v", err)
	}

	events := sampleEvents(7)
	if err := w.Record(ctx, events[:3]); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := w.Record(ctx, nil); err != nil {
		t.Fatalf("Record(nil) failed: %v", err)
	}
	if err := w.Record(ctx, events[3:]); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	rows, err := s.db.Query("SELECT seq FROM events WHERE session_id = ? ORDER BY seq", w.ID())
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var want int64 = 1
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if seq != want {
			t.Errorf("seq = %d, want %d", seq, want)
		}
		want++
	}
	if want != int64(len(events))+1 {
		t.Errorf("stored %d events, want %d", want-1, len(events))
	}
}

func TestAppendEvents_BatchIsAtomic(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(&sequentialIDs{}))
	ctx := context.Background()

	w, err := s.OpenSession(ctx, "sim", started, nil)
	if err != nil {
		t.Fatalf("OpenSession() failed: %v", err)
	}
	if err := s.AppendEvents(ctx, w.ID(), 3, []band.Event{band.Removed(1)}); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	// seq 3 collides: the whole batch must roll back.
	batch := []band.Event{band.Added(2, 0, "B"), band.Removed(2)}
	err = s.AppendEvents(ctx, w.ID(), 2, batch)
	if err == nil {
		t.Fatal("expected seq collision error, got nil")
	}
	if !strings.Contains(err.Error(), "seq 3") {
		t.Errorf("error should name the colliding seq: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("events = %d, want 1 after rollback", count)
	}
}

func TestAppendEvents_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	err := s.AppendEvents(context.Background(), "nope", 1, []band.Event{band.Removed(1)})
	if err == nil {
		t.Error("expected foreign key error, got nil")
	}
}

func TestAppendEvents_TimestampOutOfRange(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(&sequentialIDs{}))
	ctx := context.Background()

	w, err := s.OpenSession(ctx, "sim", started, nil)
	if err != nil {
		t.Fatalf("OpenSession() failed: %v", err)
	}

	err = w.Record(ctx, []band.Event{band.Calibrated(1, band.Timestamp(math.MaxUint64))})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("expected out of range error, got %v", err)
	}
}
