// Package host runs the frame-tick consumer: it drains the input pipeline
// once per frame, feeds the round engine and advances its timers.
package host

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/game"
	"github.com/OmniChip/bandgame/internal/haptic"
)

// DefaultFrameRate is the default number of frames per second.
const DefaultFrameRate = 60

// Source is the consumer side of the input pipeline.
type Source interface {
	Drain(sink func(band.Event)) int
	Done() <-chan struct{}
	Err() error
}

// Recorder persists drained batches.
type Recorder interface {
	Record(ctx context.Context, events []band.Event) error
}

// Loop owns the engine and runs on a single goroutine.
type Loop struct {
	source   Source
	engine   *game.Engine
	haptics  game.Haptics
	recorder Recorder
	clock    game.Clock
	logger   *slog.Logger

	frame     time.Duration
	autoStart bool
	autoDelay time.Duration
	greet     bool

	startRequested atomic.Bool
	idleSince      time.Time
	batch          []band.Event
	frames         uint64
	events         uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithFrameRate sets the frames per second.
func WithFrameRate(hz int) Option {
	return func(l *Loop) {
		if hz > 0 {
			l.frame = time.Second / time.Duration(hz)
		}
	}
}

// WithAutoStart starts a round whenever none is active and bands are
// present, after delay has passed without a round.
func WithAutoStart(delay time.Duration) Option {
	return func(l *Loop) {
		l.autoStart = true
		l.autoDelay = max(delay, 0)
	}
}

// WithGreeting vibrates each band with the greeting pattern when it is
// added.
func WithGreeting(enabled bool) Option {
	return func(l *Loop) {
		l.greet = enabled
	}
}

// WithRecorder records every drained batch.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) {
		l.recorder = r
	}
}

// WithClock sets the clock used for auto-start timing.
func WithClock(c game.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the loop logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.logger = log
		}
	}
}

// New creates a loop. haptics receives greetings and is normally the same
// sink the engine cues through.
func New(source Source, engine *game.Engine, haptics game.Haptics, opts ...Option) *Loop {
	l := &Loop{
		source:  source,
		engine:  engine,
		haptics: haptics,
		clock:   game.SystemClock{},
		logger:  slog.Default(),
		frame:   time.Second / DefaultFrameRate,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RequestStart asks for a round to start on the next frame. Safe to call
// from any goroutine.
func (l *Loop) RequestStart() {
	l.startRequested.Store(true)
}

// Run steps the loop once per frame until ctx is cancelled or the source
// stops. A source failure is returned; cancellation is not an error.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()

	l.logger.Info("frame loop started", "frame", l.frame, "auto_start", l.autoStart)
	defer func() {
		l.logger.Info("frame loop stopped", "frames", l.frames, "events", l.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.source.Done():
			// Deliver whatever arrived before the bus stopped.
			l.Step(ctx)
			return l.source.Err()
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step runs one frame: drain, dispatch, record, start handling, tick.
func (l *Loop) Step(ctx context.Context) {
	l.frames++
	l.batch = l.batch[:0]
	l.source.Drain(func(e band.Event) {
		l.batch = append(l.batch, e)
		l.dispatch(e)
	})
	l.events += uint64(len(l.batch))

	if l.recorder != nil && len(l.batch) > 0 {
		if err := l.recorder.Record(ctx, l.batch); err != nil {
			l.logger.Error("capture failed", "events", len(l.batch), "error", err)
		}
	}

	l.maybeStart()
	l.engine.Tick()
}

func (l *Loop) dispatch(e band.Event) {
	switch e.Kind {
	case band.EventAdded:
		l.logger.Info("band added", "band", e.Band, "name", e.Name)
		l.engine.AddBand(e.Band)
		if l.greet {
			l.haptics.Vibrate(e.Band, haptic.Greeting)
		}
	case band.EventRemoved:
		l.logger.Info("band removed", "band", e.Band)
		l.engine.RemoveBand(e.Band)
	case band.EventRawSample:
		l.engine.OnTimeHeartbeat(e.Band, e.TS)
	case band.EventPitch:
		l.logger.Debug("pitch", "band", e.Band, "ts", e.TS, "direction", e.Direction)
		l.engine.OnDirectionChange(e.Band, e.TS, e.Direction)
	case band.EventCalibrated:
		l.logger.Info("band calibrated", "band", e.Band)
	}
}

func (l *Loop) maybeStart() {
	active := l.engine.State() == game.Countdown || l.engine.State() == game.Listening

	requested := l.startRequested.Swap(false)
	if !requested && l.autoStart && !active && len(l.engine.Bands()) > 0 {
		now := l.clock.Now()
		if l.idleSince.IsZero() {
			l.idleSince = now
		}
		requested = now.Sub(l.idleSince) >= l.autoDelay
	}
	if !requested {
		return
	}

	if err := l.engine.Start(); err != nil {
		l.logger.Warn("round not started", "error", err)
		return
	}
	l.idleSince = time.Time{}
}

// Frames returns the number of frames stepped.
func (l *Loop) Frames() uint64 { return l.frames }

// Events returns the number of events drained.
func (l *Loop) Events() uint64 { return l.events }
