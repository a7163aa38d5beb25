//go:build !linux

package hw

import "errors"

// GpiodSwitch is not available on non-Linux platforms.
type GpiodSwitch struct{}

// NewGpiodSwitch returns an error on non-Linux platforms.
func NewGpiodSwitch(relayPin, dimmerPin int) (*GpiodSwitch, error) {
	return nil, errors.New("hw: not supported on this platform (requires Linux)")
}

func (s *GpiodSwitch) HasRelay() bool  { return false }
func (s *GpiodSwitch) HasDimmer() bool { return false }

func (s *GpiodSwitch) SetRelay(on bool) error {
	return errors.New("hw: not supported")
}

func (s *GpiodSwitch) SetDimmer(level uint8) error {
	return errors.New("hw: not supported")
}

func (s *GpiodSwitch) State() (bool, uint8) { return false, 0 }

func (s *GpiodSwitch) Close() error { return nil }
