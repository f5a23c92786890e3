package testutil

import (
	"fmt"
	"sync"
)

// ScriptedPicker returns pre-recorded draws in order.
//
// This enables deterministic sequence generation: a scenario lists the
// exact indices the engine will draw, band index first, then direction
// index, for each slot.
//
// Panics when the script is exhausted or a draw is out of range, since
// either means the test's script disagrees with the engine.
type ScriptedPicker struct {
	mu    sync.Mutex
	draws []int
	next  int
}

// NewScriptedPicker creates a picker that returns draws in order.
func NewScriptedPicker(draws ...int) *ScriptedPicker {
	return &ScriptedPicker{draws: draws}
}

// Intn returns the next scripted draw.
func (p *ScriptedPicker) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.draws) {
		panic(fmt.Sprintf("ScriptedPicker exhausted after %d draws", len(p.draws)))
	}
	v := p.draws[p.next]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("ScriptedPicker draw %d = %d out of range [0,%d)", p.next, v, n))
	}
	p.next++
	return v
}

// Used returns how many draws were consumed.
func (p *ScriptedPicker) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// Remaining returns how many draws are left.
func (p *ScriptedPicker) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.draws) - p.next
}
