package hw

import "fmt"

// FakeSwitch is a test double that records every actuation.
type FakeSwitch struct {
	// WithRelay and WithDimmer select which outputs the fake pretends to
	// have wired.
	WithRelay  bool
	WithDimmer bool

	// Ops is the actuation log, entries like "relay=on" or "dimmer=45".
	Ops []string

	// RelayErr and DimmerErr, if set, are returned by the setters.
	RelayErr  error
	DimmerErr error

	relayOn  bool
	dimLevel uint8

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSwitch creates a fake with both outputs wired.
func NewFakeSwitch() *FakeSwitch {
	return &FakeSwitch{WithRelay: true, WithDimmer: true}
}

func (f *FakeSwitch) HasRelay() bool  { return f.WithRelay }
func (f *FakeSwitch) HasDimmer() bool { return f.WithDimmer }

// SetRelay records the actuation.
func (f *FakeSwitch) SetRelay(on bool) error {
	if f.RelayErr != nil {
		return f.RelayErr
	}
	f.relayOn = on
	state := "off"
	if on {
		state = "on"
	}
	f.Ops = append(f.Ops, "relay="+state)
	return nil
}

// SetDimmer records the actuation.
func (f *FakeSwitch) SetDimmer(level uint8) error {
	if f.DimmerErr != nil {
		return f.DimmerErr
	}
	f.dimLevel = level
	f.Ops = append(f.Ops, fmt.Sprintf("dimmer=%d", level))
	return nil
}

// State returns the last driven values.
func (f *FakeSwitch) State() (bool, uint8) {
	return f.relayOn, f.dimLevel
}

// Close marks the fake as closed.
func (f *FakeSwitch) Close() error {
	f.Closed = true
	return nil
}

// Reset clears the actuation log and state.
func (f *FakeSwitch) Reset() {
	f.Ops = nil
	f.relayOn = false
	f.dimLevel = 0
	f.Closed = false
}
