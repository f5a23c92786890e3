// Package device defines the contract between the band hardware layer and
// the input pipeline, plus two bus implementations: a simulated bus for
// demos and tests, and a serial bus talking to a USB band hub.
//
// A Bus runs on its own goroutine and reports what happens on the hardware
// side as tagged notifications:
//
//	Found      a device appeared; identification is in progress
//	Identified identification completed (name, timestamp, ids)
//	Removed    the device is gone
//	Sample     one motion sample
//
// Notifications for one device are delivered in that order, from the
// goroutine that called Run.
package device

import (
	"context"
	"fmt"

	"github.com/OmniChip/bandgame/internal/band"
)

// Device is a band as seen by the bus. Implementations must be comparable
// (pointer types) and Vibrate must be safe to call from any goroutine.
type Device interface {
	// Vibrate sends a 64-bit waveform command to the band.
	Vibrate(effect uint64) error
}

// IDs are the registry ids reported during identification.
type IDs struct {
	Registry uint16
	Vendor   uint16
	Product  uint16
	Version  uint16
}

// String formats the ids as registry/VVVV:PPPP/version.
func (i IDs) String() string {
	return fmt.Sprintf("%d/%04X:%04X/%d", i.Registry, i.Vendor, i.Product, i.Version)
}

// Identity is what a device reports once identification completes.
type Identity struct {
	Name      string
	Timestamp band.Timestamp
	IDs       IDs
}

// Reading is one raw motion sample in device counts.
type Reading struct {
	Accel     band.Raw3
	Gyro      band.Raw3
	Timestamp band.Timestamp
}

// Notification is one of Found, Identified, Removed or Sample.
type Notification interface {
	notification()
}

// Found reports a newly discovered device.
type Found struct {
	Device Device
}

// Identified reports that identification of Device completed.
type Identified struct {
	Device   Device
	Identity Identity
}

// Removed reports that Device is gone.
type Removed struct {
	Device Device
}

// Sample carries one reading from Device.
type Sample struct {
	Device  Device
	Reading Reading
}

func (Found) notification()      {}
func (Identified) notification() {}
func (Removed) notification()    {}
func (Sample) notification()     {}

// Handler receives notifications. It is called from the goroutine running
// Bus.Run and must not block on the consumer side.
type Handler func(Notification)

// Bus discovers devices and streams their notifications.
type Bus interface {
	// Run delivers notifications to h until ctx is cancelled or the bus
	// fails. It returns ctx.Err() after cancellation.
	Run(ctx context.Context, h Handler) error
}
