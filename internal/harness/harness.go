package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/game"
	"github.com/OmniChip/bandgame/internal/haptic"
	"github.com/OmniChip/bandgame/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a manual clock and scripted draws.
type Harness struct {
	engine *game.Engine
	clock  *testutil.ManualClock
	picker *testutil.ScriptedPicker
	result *Result

	// phase labels haptics: cues during ticks, acks otherwise.
	phase string
	state game.State
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Build an engine on a fresh manual clock and scripted picker
// 2. Register the scenario's bands
// 3. Execute steps, tracing engine outputs and checking expect clauses
// 4. Evaluate trace assertions
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewManualClock(time.Time{}),
		picker: testutil.NewScriptedPicker(scenario.Draws...),
		result: NewResult(),
		phase:  TraceAck,
	}

	opts := []game.Option{
		game.WithObserver(h.onFinish),
		game.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	}
	if scenario.MinLength > 0 {
		opts = append(opts, game.WithMinLength(scenario.MinLength))
	}
	if scenario.TimeUnit > 0 {
		opts = append(opts, game.WithTimeUnit(scenario.TimeUnit))
	}
	h.engine = game.New(h.picker, h, h.clock, opts...)

	for _, id := range scenario.Bands {
		h.engine.AddBand(id)
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		h.traceState()
		if step.Expect != nil {
			for _, msg := range h.check(step.Expect) {
				h.result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
			}
		}
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func (h *Harness) execute(step Step) error {
	e := h.engine
	h.phase = TraceAck

	switch {
	case step.Start:
		return h.start()
	case step.Advance > 0:
		h.clock.Advance(step.Advance)
	case step.Tick:
		h.phase = TraceCue
		e.Tick()
	case step.Add != 0:
		e.AddBand(step.Add)
	case step.Remove != 0:
		e.RemoveBand(step.Remove)
	case step.Gesture != nil:
		e.OnDirectionChange(step.Gesture.Band, step.Gesture.TS, step.Gesture.Direction)
	case step.Heartbeat != nil:
		e.OnTimeHeartbeat(step.Heartbeat.Band, step.Heartbeat.TS)
	}
	return nil
}

// start runs Start, converting an exhausted draw script into an error.
func (h *Harness) start() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start: %v", r)
		}
	}()

	if err := h.engine.Start(); err != nil {
		var detail string
		switch {
		case game.IsRoundActive(err):
			detail = string(game.ErrCodeRoundActive)
		case game.IsNoBands(err):
			detail = string(game.ErrCodeNoBands)
		default:
			detail = err.Error()
		}
		h.result.AddTrace(h.clock.Elapsed(), TraceRejected, 0, detail)
		return nil
	}

	seq := h.engine.Sequence()
	h.result.AddTrace(h.clock.Elapsed(), TraceStart, 0, fmt.Sprintf("length=%d draws=%d", len(seq), h.picker.Used()))
	parts := make([]string, len(seq))
	for i, s := range seq {
		parts[i] = s.String()
	}
	h.result.AddTrace(h.clock.Elapsed(), TraceSequence, 0, strings.Join(parts, " "))
	return nil
}

// Vibrate records a haptic request as a cue or an acknowledgment.
func (h *Harness) Vibrate(id band.ID, effect haptic.Effect) {
	h.result.AddTrace(h.clock.Elapsed(), h.phase, id, h.effectName(effect))
}

func (h *Harness) effectName(effect haptic.Effect) string {
	if h.phase == TraceCue {
		for _, d := range band.Directions {
			if haptic.ForDirection(d) == effect {
				return d.String()
			}
		}
	} else {
		switch effect {
		case haptic.Accept:
			return "accept"
		case haptic.Reject:
			return "reject"
		}
	}
	return effect.String()
}

func (h *Harness) onFinish(s game.Summary) {
	h.result.AddTrace(h.clock.Elapsed(), TraceFinished, 0,
		fmt.Sprintf("length=%d misses=%d elapsed=%s", s.Length, s.Misses, s.Elapsed))
}

// traceState records a state change since the last step.
func (h *Harness) traceState() {
	if s := h.engine.State(); s != h.state {
		h.state = s
		h.result.AddTrace(h.clock.Elapsed(), TraceState, 0, s.String())
	}
}

// check compares engine state with an expect clause.
func (h *Harness) check(x *Expect) []string {
	var errs []string
	e := h.engine

	if x.State != nil && e.State().String() != *x.State {
		errs = append(errs, fmt.Sprintf("state = %s, want %s", e.State(), *x.State))
	}
	if x.Progress != nil && e.Progress() != *x.Progress {
		errs = append(errs, fmt.Sprintf("progress = %d, want %d", e.Progress(), *x.Progress))
	}
	if x.Misses != nil && e.Misses() != *x.Misses {
		errs = append(errs, fmt.Sprintf("misses = %d, want %d", e.Misses(), *x.Misses))
	}
	if x.Backlog != nil && e.Backlog() != *x.Backlog {
		errs = append(errs, fmt.Sprintf("backlog = %d, want %d", e.Backlog(), *x.Backlog))
	}
	if x.Sequence != nil {
		got := e.Sequence()
		if !slicesEqual(got, x.Sequence) {
			errs = append(errs, fmt.Sprintf("sequence = %v, want %v", got, x.Sequence))
		}
	}
	return errs
}

func slicesEqual(a, b []game.Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
