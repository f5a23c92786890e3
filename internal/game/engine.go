package game

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/haptic"
)

// DefaultMinLength is the shortest sequence a round generates.
const DefaultMinLength = 3

// DefaultTimeUnit is the spacing between cues.
const DefaultTimeUnit = time.Second

// State is the round state.
type State int

const (
	Idle State = iota
	Countdown
	Listening
	Finished
)

var stateNames = [...]string{"idle", "countdown", "listening", "finished"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Step is one entry of the target sequence.
type Step struct {
	Band      band.ID        `json:"band" yaml:"band"`
	Direction band.Direction `json:"direction" yaml:"direction"`
}

func (s Step) String() string {
	return fmt.Sprintf("%d:%s", s.Band, s.Direction)
}

// Summary reports a finished round.
type Summary struct {
	Length  int           `json:"length"`
	Misses  int           `json:"misses"`
	Elapsed time.Duration `json:"elapsed"`
}

// Haptics delivers a waveform to a band. The pipeline satisfies it.
type Haptics interface {
	Vibrate(id band.ID, effect haptic.Effect)
}

type cue struct {
	at     time.Time
	band   band.ID
	effect haptic.Effect
}

// Engine runs sequence rounds. See the package documentation.
type Engine struct {
	picker  Picker
	haptics Haptics
	clock   Clock
	logger  *slog.Logger

	minLength int
	unit      time.Duration
	onFinish  func(Summary)

	// bands maps each registered band to its live direction.
	bands map[band.ID]band.Direction

	state     State
	sequence  []Step
	current   int
	misses    int
	cues      []cue
	deadline  time.Time
	startedAt time.Time

	backlog    map[band.Timestamp][]Step
	watermarks map[band.ID]band.Timestamp
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinLength sets the minimum sequence length.
func WithMinLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// WithTimeUnit sets the cue spacing.
func WithTimeUnit(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.unit = d
		}
	}
}

// WithObserver registers a callback for finished rounds.
func WithObserver(fn func(Summary)) Option {
	return func(e *Engine) {
		e.onFinish = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an idle engine.
func New(picker Picker, haptics Haptics, clock Clock, opts ...Option) *Engine {
	e := &Engine{
		picker:     picker,
		haptics:    haptics,
		clock:      clock,
		logger:     slog.Default(),
		minLength:  DefaultMinLength,
		unit:       DefaultTimeUnit,
		bands:      make(map[band.ID]band.Direction),
		backlog:    make(map[band.Timestamp][]Step),
		watermarks: make(map[band.ID]band.Timestamp),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	return e
}

// AddBand registers a band. Its live direction starts Unknown.
func (e *Engine) AddBand(id band.ID) {
	if _, ok := e.bands[id]; ok {
		return
	}
	e.bands[id] = band.Unknown
	e.logger.Debug("band registered", "band", id)
}

// RemoveBand unregisters a band and drops its watermark.
//
// A round whose remaining steps address the band can no longer finish and
// is abandoned back to Idle.
func (e *Engine) RemoveBand(id band.ID) {
	if _, ok := e.bands[id]; !ok {
		return
	}
	delete(e.bands, id)
	delete(e.watermarks, id)
	e.logger.Debug("band unregistered", "band", id)

	if e.state != Countdown && e.state != Listening {
		return
	}
	for _, s := range e.sequence[e.current:] {
		if s.Band == id {
			e.logger.Warn("round abandoned: band left", "band", id, "progress", e.current, "length", len(e.sequence))
			e.state = Idle
			e.cues = nil
			clear(e.backlog)
			return
		}
	}
	if e.state == Listening {
		e.flush()
	}
}

// Start begins a new round.
func (e *Engine) Start() error {
	if e.state == Countdown || e.state == Listening {
		return newRoundActiveError(e.state)
	}
	if len(e.bands) == 0 {
		return newNoBandsError(e.state)
	}

	e.current = 0
	e.misses = 0
	clear(e.backlog)
	clear(e.watermarks)

	ids := e.Bands()
	n := max(e.minLength, 2*len(ids))
	e.sequence = e.generate(ids, n)

	now := e.clock.Now()
	e.startedAt = now
	e.cues = make([]cue, 0, n)
	for i, s := range e.sequence {
		e.cues = append(e.cues, cue{
			at:     now.Add(time.Duration(i) * e.unit),
			band:   s.Band,
			effect: haptic.ForDirection(s.Direction),
		})
		e.logger.Info("sequence step", "index", i, "band", s.Band, "direction", s.Direction)
	}
	e.deadline = now.Add(time.Duration(n+1) * e.unit)
	e.state = Countdown
	e.logger.Info("round started", "length", n, "bands", len(ids))
	return nil
}

// generate draws n steps. Each slot is redrawn until it differs from the
// previous slot and, for a band's first slot, from the band's live
// direction.
func (e *Engine) generate(ids []band.ID, n int) []Step {
	seq := make([]Step, 0, n)
	seen := make(map[band.ID]bool, len(ids))
	for len(seq) < n {
		s := Step{
			Band:      ids[e.picker.Intn(len(ids))],
			Direction: band.Directions[e.picker.Intn(len(band.Directions))],
		}
		if len(seq) > 0 && seq[len(seq)-1] == s {
			continue
		}
		if !seen[s.Band] {
			if s.Direction == e.bands[s.Band] {
				continue
			}
			seen[s.Band] = true
		}
		seq = append(seq, s)
	}
	return seq
}

// Tick fires due cues and ends the countdown once its deadline passes.
func (e *Engine) Tick() {
	now := e.clock.Now()

	fired := 0
	for _, c := range e.cues {
		if c.at.After(now) {
			break
		}
		e.haptics.Vibrate(c.band, c.effect)
		fired++
	}
	e.cues = e.cues[fired:]

	if e.state == Countdown && !now.Before(e.deadline) {
		e.state = Listening
		e.logger.Info("round listening", "length", len(e.sequence))
	}
}

// OnDirectionChange records a band's new direction and, while Listening,
// queues it for judging.
func (e *Engine) OnDirectionChange(id band.ID, ts band.Timestamp, dir band.Direction) {
	if _, ok := e.bands[id]; !ok {
		return
	}
	e.bands[id] = dir
	if e.state != Listening {
		return
	}
	e.backlog[ts] = append(e.backlog[ts], Step{Band: id, Direction: dir})
	e.advanceWatermark(id, ts)
}

// OnTimeHeartbeat certifies that a band has reported everything up to ts.
func (e *Engine) OnTimeHeartbeat(id band.ID, ts band.Timestamp) {
	if _, ok := e.bands[id]; !ok {
		return
	}
	e.advanceWatermark(id, ts)
}

func (e *Engine) advanceWatermark(id band.ID, ts band.Timestamp) {
	if cur, ok := e.watermarks[id]; !ok || ts > cur {
		e.watermarks[id] = ts
	}
	if e.state != Listening {
		return
	}
	e.flush()
}

// flush judges every backlog bucket at or below the global watermark.
func (e *Engine) flush() {
	global, ok := e.GlobalWatermark()
	if !ok {
		return
	}

	var keys []band.Timestamp
	for ts := range e.backlog {
		if ts <= global {
			keys = append(keys, ts)
		}
	}
	if len(keys) == 0 {
		return
	}
	slices.Sort(keys)

	outcomes := make(map[band.ID]bool)
	for _, ts := range keys {
		for _, s := range e.backlog[ts] {
			if e.state != Listening {
				break
			}
			outcomes[s.Band] = e.matchStep(s.Band, s.Direction)
		}
		delete(e.backlog, ts)
	}

	acked := make([]band.ID, 0, len(outcomes))
	for id := range outcomes {
		acked = append(acked, id)
	}
	slices.Sort(acked)
	for _, id := range acked {
		e.haptics.Vibrate(id, haptic.Outcome(outcomes[id]))
	}

	if e.state == Finished {
		clear(e.backlog)
		e.finish()
	}
}

func (e *Engine) matchStep(id band.ID, dir band.Direction) bool {
	want := e.sequence[e.current]
	if want.Band == id && want.Direction == dir {
		e.current++
		e.logger.Debug("step matched", "band", id, "direction", dir, "progress", e.current)
		if e.current == len(e.sequence) {
			e.state = Finished
		}
		return true
	}
	e.misses++
	e.logger.Debug("step missed", "band", id, "direction", dir, "want", want, "misses", e.misses)
	return false
}

func (e *Engine) finish() {
	sum := Summary{
		Length:  len(e.sequence),
		Misses:  e.misses,
		Elapsed: e.clock.Now().Sub(e.startedAt),
	}
	e.logger.Info("round finished", "length", sum.Length, "misses", sum.Misses, "elapsed", sum.Elapsed)
	if e.onFinish != nil {
		e.onFinish(sum)
	}
}

// State returns the round state.
func (e *Engine) State() State { return e.state }

// Progress returns the number of matched steps.
func (e *Engine) Progress() int { return e.current }

// Misses returns the number of mismatches this round.
func (e *Engine) Misses() int { return e.misses }

// Sequence returns a copy of the target sequence.
func (e *Engine) Sequence() []Step { return slices.Clone(e.sequence) }

// PendingCues returns the number of cues not yet fired.
func (e *Engine) PendingCues() int { return len(e.cues) }

// Backlog returns the number of observations awaiting judgment.
func (e *Engine) Backlog() int {
	n := 0
	for _, b := range e.backlog {
		n += len(b)
	}
	return n
}

// Bands returns the registered band ids in ascending order.
func (e *Engine) Bands() []band.ID {
	ids := make([]band.ID, 0, len(e.bands))
	for id := range e.bands {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Direction returns a band's live direction.
func (e *Engine) Direction(id band.ID) (band.Direction, bool) {
	d, ok := e.bands[id]
	return d, ok
}

// Watermark returns a band's watermark.
func (e *Engine) Watermark(id band.ID) (band.Timestamp, bool) {
	ts, ok := e.watermarks[id]
	return ts, ok
}

// GlobalWatermark returns the minimum watermark over registered bands.
// It is undefined while any registered band has none.
func (e *Engine) GlobalWatermark() (band.Timestamp, bool) {
	if len(e.bands) == 0 {
		return 0, false
	}
	first := true
	var global band.Timestamp
	for id := range e.bands {
		ts, ok := e.watermarks[id]
		if !ok {
			return 0, false
		}
		if first || ts < global {
			global = ts
			first = false
		}
	}
	return global, true
}
