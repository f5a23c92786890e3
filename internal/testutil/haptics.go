package testutil

import (
	"fmt"
	"sync"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/haptic"
)

// Vibe is one recorded haptic request.
type Vibe struct {
	Band   band.ID
	Effect haptic.Effect
}

func (v Vibe) String() string {
	return fmt.Sprintf("%d:%s", v.Band, v.Effect)
}

// HapticsRecorder records Vibrate calls instead of driving hardware.
type HapticsRecorder struct {
	mu    sync.Mutex
	vibes []Vibe
}

// Vibrate records the request.
func (r *HapticsRecorder) Vibrate(id band.ID, effect haptic.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vibes = append(r.vibes, Vibe{Band: id, Effect: effect})
}

// Vibes returns all recorded requests.
func (r *HapticsRecorder) Vibes() []Vibe {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Vibe(nil), r.vibes...)
}

// Take returns the requests recorded since the last Take and forgets them.
func (r *HapticsRecorder) Take() []Vibe {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.vibes
	r.vibes = nil
	return out
}
