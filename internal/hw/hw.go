// Package hw drives the relay and dimmer outputs. The real implementation
// uses the Linux GPIO character device; the fake implementation allows
// testing the switching logic without hardware.
package hw

// Switch actuates the physical outputs of the plug.
type Switch interface {
	// HasRelay reports whether a relay output is wired.
	HasRelay() bool

	// HasDimmer reports whether a dimmer output is wired.
	HasDimmer() bool

	// SetRelay drives the relay output.
	SetRelay(on bool) error

	// SetDimmer drives the dimmer output, level in percent 0..100.
	SetDimmer(level uint8) error

	// State returns the last driven relay and dimmer values.
	State() (relayOn bool, dimmerLevel uint8)

	// Close releases hardware resources and drives both outputs off.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinRelay  = 17
	PinDimmer = 18
)
