package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/OmniChip/bandgame/internal/band"
)

// sequentialIDs generates session-0001, session-0002, ...
type sequentialIDs struct {
	n int
}

func (g *sequentialIDs) Generate() string {
	g.n++
	return fmt.Sprintf("session-%04d", g.n)
}

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleEvents is one band's short capture: added, two resting samples,
// a direction change and removal.
func sampleEvents(id band.ID) []band.Event {
	return []band.Event{
		band.Added(id, 0, "Left"),
		band.RawSample(id, 10, band.Vec3{0, 0, 1}, band.Vec3{}),
		band.Pitch(id, 10, band.Level),
		band.RawSample(id, 20, band.Vec3{1, 0, 0}, band.Vec3{0.5, 0, 0}),
		band.Pitch(id, 20, band.Up),
		band.Calibrated(id, 25),
		band.Removed(id),
	}
}
