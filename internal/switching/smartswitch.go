// Package switching arbitrates the final output of the plug: it merges
// behaviour intent, twilight ceilings, manual overrides and safety flags
// into a single hardware command.
package switching

import (
	"errors"
	"fmt"
	"log/slog"

	"crownstone-home/internal/hw"
	"crownstone-home/internal/store"
)

// ErrSwitchLocked is returned when actuation is refused because switching is
// locked. The intended state is still recorded and applied once unlocked.
var ErrSwitchLocked = errors.New("switching: switch is locked")

// SmartSwitch maps an intensity in [0,100] onto the relay and dimmer
// outputs. The dimmer carries intermediate levels, the relay carries full-on
// so the dimmer circuit can be bypassed, and zero turns both off. When
// dimming is not allowed or no dimmer is wired, any non-zero intensity
// degrades to relay full-on.
type SmartSwitch struct {
	hw      hw.Switch
	persist store.Store
	logger  *slog.Logger

	intended       uint8
	allowDimming   bool
	allowSwitching bool

	relayOn  bool
	dimLevel uint8
}

// NewSmartSwitch wraps the hardware switch. The dimming and locked flags
// come from persisted settings.
func NewSmartSwitch(h hw.Switch, persist store.Store, allowDimming, switchLocked bool, logger *slog.Logger) *SmartSwitch {
	relayOn, dimLevel := h.State()
	return &SmartSwitch{
		hw:             h,
		persist:        persist,
		logger:         logger.With("component", "smartswitch"),
		allowDimming:   allowDimming,
		allowSwitching: !switchLocked,
		relayOn:        relayOn,
		dimLevel:       dimLevel,
	}
}

// Set records the intended intensity and actuates the hardware. Values above
// 100 are clamped. Returns true when the hardware state changed.
func (s *SmartSwitch) Set(intensity uint8) (bool, error) {
	if intensity > 100 {
		intensity = 100
	}
	s.intended = intensity
	return s.resolve()
}

// resolve drives the outputs towards the intended intensity. Writes are
// edge-triggered: an output already in the wanted state is left alone.
func (s *SmartSwitch) resolve() (bool, error) {
	if !s.allowSwitching {
		s.logger.Debug("actuation refused, switch locked", "intended", s.intended)
		return false, ErrSwitchLocked
	}

	var wantRelay bool
	var wantDim uint8
	switch {
	case s.intended == 0:
		// Both outputs off.
	case s.intended == 100:
		if s.hw.HasRelay() {
			wantRelay = true
		} else {
			wantDim = 100
		}
	default:
		if s.allowDimming && s.hw.HasDimmer() {
			wantDim = s.intended
		} else if s.hw.HasRelay() {
			// Dimming revoked or not wired: a non-zero intent degrades
			// to full-on.
			wantRelay = true
		} else {
			wantDim = s.intended
		}
	}

	changed := false
	if s.hw.HasDimmer() && wantDim != s.dimLevel {
		if err := s.hw.SetDimmer(wantDim); err != nil {
			return changed, fmt.Errorf("actuate dimmer: %w", err)
		}
		s.dimLevel = wantDim
		changed = true
	}
	if s.hw.HasRelay() && wantRelay != s.relayOn {
		if err := s.hw.SetRelay(wantRelay); err != nil {
			return changed, fmt.Errorf("actuate relay: %w", err)
		}
		s.relayOn = wantRelay
		changed = true
	}

	if changed {
		s.logger.Info("switch state", "intensity", s.CurrentIntensity(), "relay", s.relayOn, "dimmer", s.dimLevel)
		state := s.State()
		if err := s.persist.SaveSwitchState(&state); err != nil {
			s.logger.Warn("persist switch state", "error", err)
		}
	}
	return changed, nil
}

// IntendedState returns the last requested intensity.
func (s *SmartSwitch) IntendedState() uint8 { return s.intended }

// CurrentIntensity returns the intensity the outputs currently produce.
func (s *SmartSwitch) CurrentIntensity() uint8 {
	if s.relayOn {
		return 100
	}
	return s.dimLevel
}

// State returns the actual output state.
func (s *SmartSwitch) State() store.SwitchState {
	return store.SwitchState{
		Intensity:   s.CurrentIntensity(),
		RelayOn:     s.relayOn,
		DimmerLevel: s.dimLevel,
	}
}

// AllowDimming reports the dimming flag.
func (s *SmartSwitch) AllowDimming() bool { return s.allowDimming }

// AllowSwitching reports whether actuation is currently permitted.
func (s *SmartSwitch) AllowSwitching() bool { return s.allowSwitching }

// SetAllowDimming flips the dimming privilege and re-resolves the intended
// state so a dimmed output degrades or recovers immediately.
func (s *SmartSwitch) SetAllowDimming(allowed bool) (bool, error) {
	if s.allowDimming == allowed {
		return false, nil
	}
	s.allowDimming = allowed
	s.logger.Info("dimming allowed flag", "allowed", allowed)
	return s.resolve()
}

// SetAllowSwitching locks or unlocks actuation. Unlocking re-resolves the
// intended state so commands issued while locked take effect.
func (s *SmartSwitch) SetAllowSwitching(allowed bool) (bool, error) {
	if s.allowSwitching == allowed {
		return false, nil
	}
	s.allowSwitching = allowed
	s.logger.Info("switching allowed flag", "allowed", allowed)
	if !allowed {
		return false, nil
	}
	return s.resolve()
}
