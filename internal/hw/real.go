//go:build linux

package hw

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// pwmPeriod is the soft-PWM cycle for the dimmer line. Mains dimming is done
// by a triac module that takes a duty-cycled control signal.
const pwmPeriod = 10 * time.Millisecond

// GpiodSwitch drives a relay line and a soft-PWM dimmer line on actual
// hardware using the Linux GPIO character device.
type GpiodSwitch struct {
	chip      *gpiocdev.Chip
	relayLine *gpiocdev.Line
	dimLine   *gpiocdev.Line

	mu       sync.Mutex
	relayOn  bool
	dimLevel uint8

	done chan struct{}
	wg   sync.WaitGroup
}

// NewGpiodSwitch opens the GPIO chip and requests the relay and dimmer pins
// as outputs, both initially low. Pass a negative dimmerPin for relay-only
// hardware.
func NewGpiodSwitch(relayPin, dimmerPin int) (*GpiodSwitch, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	relayLine, err := chip.RequestLine(relayPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", relayPin, err)
	}

	s := &GpiodSwitch{
		chip:      chip,
		relayLine: relayLine,
		done:      make(chan struct{}),
	}

	if dimmerPin >= 0 {
		dimLine, err := chip.RequestLine(dimmerPin, gpiocdev.AsOutput(0))
		if err != nil {
			relayLine.Close()
			chip.Close()
			return nil, fmt.Errorf("request dimmer pin %d: %w", dimmerPin, err)
		}
		s.dimLine = dimLine
		s.wg.Add(1)
		go s.pwmLoop()
	}

	return s, nil
}

// HasRelay reports whether a relay output is wired.
func (s *GpiodSwitch) HasRelay() bool { return true }

// HasDimmer reports whether a dimmer output is wired.
func (s *GpiodSwitch) HasDimmer() bool { return s.dimLine != nil }

// SetRelay drives the relay output.
func (s *GpiodSwitch) SetRelay(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := s.relayLine.SetValue(v); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	s.mu.Lock()
	s.relayOn = on
	s.mu.Unlock()
	return nil
}

// SetDimmer sets the dimmer duty cycle in percent. The PWM goroutine picks
// up the new level on its next cycle.
func (s *GpiodSwitch) SetDimmer(level uint8) error {
	if s.dimLine == nil {
		return fmt.Errorf("set dimmer: no dimmer wired")
	}
	if level > 100 {
		level = 100
	}
	s.mu.Lock()
	s.dimLevel = level
	s.mu.Unlock()
	return nil
}

// State returns the last driven relay and dimmer values.
func (s *GpiodSwitch) State() (bool, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relayOn, s.dimLevel
}

// pwmLoop duty-cycles the dimmer line. Full-off and full-on hold the line
// steady instead of toggling.
func (s *GpiodSwitch) pwmLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.Lock()
		level := s.dimLevel
		s.mu.Unlock()

		switch {
		case level == 0:
			s.dimLine.SetValue(0)
			s.sleep(pwmPeriod)
		case level >= 100:
			s.dimLine.SetValue(1)
			s.sleep(pwmPeriod)
		default:
			onTime := pwmPeriod * time.Duration(level) / 100
			s.dimLine.SetValue(1)
			s.sleep(onTime)
			s.dimLine.SetValue(0)
			s.sleep(pwmPeriod - onTime)
		}
	}
}

func (s *GpiodSwitch) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
	case <-t.C:
	}
}

// Close stops the PWM loop, drives both outputs low and releases the chip.
func (s *GpiodSwitch) Close() error {
	close(s.done)
	s.wg.Wait()

	var errs []error
	if err := s.relayLine.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear relay: %w", err))
	}
	if err := s.relayLine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close relay pin: %w", err))
	}
	if s.dimLine != nil {
		if err := s.dimLine.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear dimmer: %w", err))
		}
		if err := s.dimLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dimmer pin: %w", err))
		}
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
