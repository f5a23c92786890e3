package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// SerialConfig configures the serial hub connection.
type SerialConfig struct {
	Port string `yaml:"port" env:"PORT"`
	Baud int    `yaml:"baud" env:"BAUD"`
}

// SerialBus talks to a band hub over a serial link. The hub multiplexes up
// to 256 bands, addressed by slot.
type SerialBus struct {
	port   io.ReadWriter
	logger *slog.Logger

	wmu sync.Mutex // serializes frame writes

	closeOnce sync.Once
	closeErr  error

	devices map[byte]*serialDevice // owned by the Run goroutine
}

// OpenSerial opens the named serial device.
func OpenSerial(cfg SerialConfig, logger *slog.Logger) (*SerialBus, error) {
	p, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("serial: port opened", "device", cfg.Port, "baud", cfg.Baud)
	return NewSerialBus(p, logger), nil
}

// NewSerialBus wraps an already open port.
func NewSerialBus(port io.ReadWriter, logger *slog.Logger) *SerialBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialBus{
		port:    port,
		logger:  logger,
		devices: make(map[byte]*serialDevice),
	}
}

// serialDevice is one band behind the hub.
type serialDevice struct {
	bus  *SerialBus
	slot byte
}

// Vibrate sends a waveform command for the band's slot.
func (d *serialDevice) Vibrate(effect uint64) error {
	return d.bus.write(Frame{Cmd: CmdVibe, Payload: VibePayload(d.slot, effect)})
}

func (b *SerialBus) write(f Frame) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	if _, err := b.port.Write(f.Encode()); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close closes the port if it is an io.Closer. It may be called more than
// once and concurrently with Run.
func (b *SerialBus) Close() error {
	b.closeOnce.Do(func() {
		if c, ok := b.port.(io.Closer); ok {
			b.closeErr = c.Close()
		}
	})
	return b.closeErr
}

// Run reads hub frames until ctx is cancelled or the port fails. Closing
// the port is how a blocked read is interrupted, so Run closes it on
// cancellation.
func (b *SerialBus) Run(ctx context.Context, h Handler) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = b.Close()
		case <-done:
		}
	}()

	fr := NewFrameReader(b.port)
	for {
		f, err := fr.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrShortPayload) {
				b.logger.Warn("serial: dropping frame", "error", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				b.logger.Info("serial: hub closed the link")
				return nil
			}
			return fmt.Errorf("serial read: %w", err)
		}

		if err := b.dispatch(f, h); err != nil {
			b.logger.Warn("serial: bad frame", "cmd", f.Cmd, "error", err)
		}
	}
}

func (b *SerialBus) dispatch(f Frame, h Handler) error {
	switch f.Cmd {
	case CmdFound:
		if len(f.Payload) < 1 {
			return ErrShortPayload
		}
		slot := f.Payload[0]
		if old, ok := b.devices[slot]; ok {
			// Replugged without a removal message.
			h(Removed{Device: old})
		}
		d := &serialDevice{bus: b, slot: slot}
		b.devices[slot] = d
		h(Found{Device: d})

	case CmdIdentified:
		slot, id, err := ParseIdentified(f.Payload)
		if err != nil {
			return err
		}
		d, ok := b.devices[slot]
		if !ok {
			return fmt.Errorf("identified: unknown slot %d", slot)
		}
		h(Identified{Device: d, Identity: id})

	case CmdRemoved:
		if len(f.Payload) < 1 {
			return ErrShortPayload
		}
		slot := f.Payload[0]
		d, ok := b.devices[slot]
		if !ok {
			return fmt.Errorf("removed: unknown slot %d", slot)
		}
		delete(b.devices, slot)
		h(Removed{Device: d})

	case CmdSample:
		slot, r, err := ParseSample(f.Payload)
		if err != nil {
			return err
		}
		d, ok := b.devices[slot]
		if !ok {
			return fmt.Errorf("sample: unknown slot %d", slot)
		}
		h(Sample{Device: d, Reading: r})

	default:
		return fmt.Errorf("unknown command 0x%02X", f.Cmd)
	}
	return nil
}
