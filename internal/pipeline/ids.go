package pipeline

import (
	"sync/atomic"

	"github.com/OmniChip/bandgame/internal/band"
)

// idAllocator hands out band ids. Ids start at 1, strictly increase and are
// never reused within one pipeline.
type idAllocator struct {
	last atomic.Uint32
}

// Next returns a fresh id.
func (a *idAllocator) Next() band.ID {
	return band.ID(a.last.Add(1))
}

// Current returns the last id handed out, or 0.
func (a *idAllocator) Current() band.ID {
	return band.ID(a.last.Load())
}
