// Package pipeline converts device notifications into domain events and
// hands them to the frame-tick consumer.
//
// # Roles
//
// A Pipeline runs the device bus on its own goroutine (the hardware role).
// Everything the bus reports is handled on that goroutine: band
// registration, calibration, unit conversion and gesture classification.
// The results are appended to a queue. The consumer calls Drain once per
// frame to take the whole batch.
//
// The queue swap is the only critical section shared by the two roles.
// Haptic commands travel the other way through a bounded channel serviced
// by a dispatcher goroutine, so neither role ever blocks on the other.
//
// # Lifecycle
//
// New constructs the pipeline, Start launches the goroutines, Stop cancels
// the bus and joins them. Events not drained before Stop are discarded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/device"
	"github.com/OmniChip/bandgame/internal/gesture"
	"github.com/OmniChip/bandgame/internal/haptic"
)

// DefaultHapticQueue is the default capacity of the haptic request channel.
const DefaultHapticQueue = 32

var (
	// ErrNilDevice is returned when the bus reports a nil device.
	ErrNilDevice = errors.New("nil device")
	// ErrDuplicateDevice is returned when a device is found twice.
	ErrDuplicateDevice = errors.New("device already registered")
)

// bandRecord is the hardware-side state of one band. Only the bus
// goroutine touches it.
type bandRecord struct {
	id         band.ID
	name       string
	identified bool
	calib      Calibrator
	offset     Offset
	dir        band.Direction
}

type vibeRequest struct {
	band   band.ID
	effect haptic.Effect
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithThresholds overrides the gesture classifier gates.
func WithThresholds(th gesture.Thresholds) Option {
	return func(p *Pipeline) {
		p.thresholds = th
	}
}

// WithCalibration enables zero-offset calibration over the given number of
// samples for every new band.
func WithCalibration(samples int) Option {
	return func(p *Pipeline) {
		p.newCalibrator = func() Calibrator { return NewAveragingCalibrator(samples) }
	}
}

// WithCalibrator enables calibration using a custom calibrator factory.
func WithCalibrator(factory func() Calibrator) Option {
	return func(p *Pipeline) {
		p.newCalibrator = factory
	}
}

// WithHapticQueue sets the capacity of the haptic request channel.
func WithHapticQueue(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.vibes = make(chan vibeRequest, n)
		}
	}
}

// Pipeline is the hardware-to-consumer event pipeline.
type Pipeline struct {
	bus           device.Bus
	logger        *slog.Logger
	thresholds    gesture.Thresholds
	newCalibrator func() Calibrator

	ids   idAllocator
	queue *eventQueue

	// Owned by the bus goroutine.
	bands map[device.Device]*bandRecord

	// Routing table for haptics. Written by the bus goroutine, read by the
	// dispatcher.
	routesMu sync.RWMutex
	routes   map[band.ID]device.Device

	vibes chan vibeRequest

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	busErr error
}

// New creates a pipeline reading from bus.
func New(bus device.Bus, opts ...Option) *Pipeline {
	p := &Pipeline{
		bus:        bus,
		logger:     slog.Default(),
		thresholds: gesture.DefaultThresholds(),
		queue:      newEventQueue(),
		bands:      make(map[device.Device]*bandRecord),
		routes:     make(map[band.ID]device.Device),
		vibes:      make(chan vibeRequest, DefaultHapticQueue),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start launches the bus and haptic dispatcher goroutines. It must be
// called at most once.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		defer close(p.done)

		err := p.bus.Run(ctx, p.handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("device bus stopped", "error", err)
			p.busErr = err
		}
	}()
	go func() {
		defer p.wg.Done()
		p.dispatchHaptics(ctx)
	}()

	p.logger.Info("input pipeline started")
}

// Stop cancels the bus, waits for both goroutines and closes the queue.
// Un-drained events are discarded.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	dropped := p.queue.Len()
	p.queue.Close()
	p.logger.Info("input pipeline stopped", "discarded", dropped)
}

// Done is closed when the bus goroutine returns.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the error the bus stopped with, if any. Valid after Done.
func (p *Pipeline) Err() error {
	return p.busErr
}

// Drain takes every queued event under the lock and then delivers them to
// sink, in append order, outside the lock. It returns the batch size.
// Drain must be called from a single consumer goroutine.
func (p *Pipeline) Drain(sink func(band.Event)) int {
	batch := p.queue.Swap()
	for _, e := range batch {
		sink(e)
	}
	return len(batch)
}

// Pending returns the number of events waiting to be drained.
func (p *Pipeline) Pending() int {
	return p.queue.Len()
}

// Vibrate requests a waveform on a band. It never blocks: requests are
// dropped when the haptic channel is full, and failures are only logged.
func (p *Pipeline) Vibrate(id band.ID, effect haptic.Effect) {
	select {
	case p.vibes <- vibeRequest{band: id, effect: effect}:
	default:
		p.logger.Warn("haptic queue full, dropping", "band", id, "effect", effect)
	}
}

func (p *Pipeline) dispatchHaptics(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.vibes:
			p.routesMu.RLock()
			dev, ok := p.routes[req.band]
			p.routesMu.RUnlock()

			if !ok {
				p.logger.Debug("haptic for unknown band", "band", req.band)
				continue
			}
			p.logger.Debug("band vibe", "band", req.band, "effect", req.effect)
			if err := dev.Vibrate(uint64(req.effect)); err != nil {
				p.logger.Warn("band vibe failed", "band", req.band, "error", err)
			}
		}
	}
}

// handle routes one bus notification. Called on the bus goroutine.
func (p *Pipeline) handle(n device.Notification) {
	switch n := n.(type) {
	case device.Found:
		if err := p.onDeviceFound(n.Device); err != nil {
			p.logger.Warn("band registration failed, dropping device", "error", err)
		}
	case device.Identified:
		p.onDeviceIdentified(n.Device, n.Identity)
	case device.Removed:
		p.onDeviceLost(n.Device)
	case device.Sample:
		p.onSample(n.Device, n.Reading)
	default:
		p.logger.Warn("unknown bus notification", "type", fmt.Sprintf("%T", n))
	}
}

// onDeviceFound allocates a band for a newly discovered device.
// Identification is still pending; nothing is announced yet.
func (p *Pipeline) onDeviceFound(dev device.Device) error {
	if dev == nil {
		return ErrNilDevice
	}
	if _, ok := p.bands[dev]; ok {
		return ErrDuplicateDevice
	}
	rec := &bandRecord{id: p.ids.Next(), dir: band.Unknown}
	if p.newCalibrator != nil {
		rec.calib = p.newCalibrator()
	}
	p.bands[dev] = rec

	p.logger.Debug("band found", "band", rec.id)
	return nil
}

// onDeviceIdentified completes registration and announces the band.
func (p *Pipeline) onDeviceIdentified(dev device.Device, id device.Identity) {
	rec, ok := p.bands[dev]
	if !ok {
		p.logger.Warn("identification for unknown device")
		return
	}
	if rec.identified {
		p.logger.Debug("band identified twice", "band", rec.id)
		return
	}

	rec.name = sanitizeName(id.Name, MaxNameLen)
	rec.identified = true

	p.routesMu.Lock()
	p.routes[rec.id] = dev
	p.routesMu.Unlock()

	p.logger.Info("band added", "band", rec.id, "name", rec.name, "ids", id.IDs.String(), "ts", id.Timestamp)
	p.queue.Append(band.Added(rec.id, id.Timestamp, rec.name))
}

// onDeviceLost forgets the band, announcing the removal only if the band
// had been announced.
func (p *Pipeline) onDeviceLost(dev device.Device) {
	rec, ok := p.bands[dev]
	if !ok {
		return
	}
	delete(p.bands, dev)

	if !rec.identified {
		p.logger.Debug("unidentified band lost", "band", rec.id)
		return
	}

	p.routesMu.Lock()
	delete(p.routes, rec.id)
	p.routesMu.Unlock()

	p.logger.Info("band removed", "band", rec.id, "name", rec.name)
	p.queue.Append(band.Removed(rec.id))
}

// onSample calibrates or converts one reading.
func (p *Pipeline) onSample(dev device.Device, r device.Reading) {
	rec, ok := p.bands[dev]
	if !ok || !rec.identified {
		return
	}

	if rec.calib != nil {
		if rec.calib.Process(r) {
			rec.offset = rec.calib.Offset()
			rec.calib = nil
			p.logger.Info("band calibrated", "band", rec.id,
				"accel_offset", rec.offset.Accel, "gyro_offset", rec.offset.Gyro)
			p.queue.Append(band.Calibrated(rec.id, r.Timestamp))
		}
		return
	}

	accel := band.AccelFromRaw(r.Accel.Sub(rec.offset.Accel))
	gyro := band.GyroFromRaw(r.Gyro.Sub(rec.offset.Gyro))
	p.queue.Append(band.RawSample(rec.id, r.Timestamp, accel, gyro))

	dir, changed := p.thresholds.Classify(accel, gyro, rec.dir)
	if !changed {
		return
	}
	rec.dir = dir
	p.logger.Debug("band direction", "band", rec.id, "dir", dir, "ts", r.Timestamp)
	p.queue.Append(band.Pitch(rec.id, r.Timestamp, dir))
}
