package switching

import (
	"errors"
	"log/slog"
	"testing"

	"crownstone-home/internal/hw"
)

func newSmart(t *testing.T, fake *hw.FakeSwitch, allowDimming bool) *SmartSwitch {
	t.Helper()
	return NewSmartSwitch(fake, newMemStore(), allowDimming, false, slog.Default())
}

func TestSmartSwitchMapping(t *testing.T) {
	fake := hw.NewFakeSwitch()
	s := newSmart(t, fake, true)

	cases := []struct {
		intensity uint8
		wantRelay bool
		wantDim   uint8
	}{
		{0, false, 0},
		{45, false, 45},
		{100, true, 0},
		{0, false, 0},
	}
	for _, c := range cases {
		if _, err := s.Set(c.intensity); err != nil {
			t.Fatal(err)
		}
		relayOn, dimLevel := fake.State()
		if relayOn != c.wantRelay || dimLevel != c.wantDim {
			t.Errorf("set %d: state = (relay=%v dimmer=%d), want (relay=%v dimmer=%d)",
				c.intensity, relayOn, dimLevel, c.wantRelay, c.wantDim)
		}
		if got := s.CurrentIntensity(); got != c.intensity {
			t.Errorf("set %d: current intensity = %d", c.intensity, got)
		}
	}
}

func TestSmartSwitchClampsAbove100(t *testing.T) {
	fake := hw.NewFakeSwitch()
	s := newSmart(t, fake, true)

	if _, err := s.Set(120); err != nil {
		t.Fatal(err)
	}
	if got := s.IntendedState(); got != 100 {
		t.Errorf("intended = %d, want 100", got)
	}
	if got := s.CurrentIntensity(); got != 100 {
		t.Errorf("intensity = %d, want 100", got)
	}
}

func TestSmartSwitchRelayOnly(t *testing.T) {
	fake := hw.NewFakeSwitch()
	fake.WithDimmer = false
	s := newSmart(t, fake, true)

	// A dim request degrades to full-on when no dimmer is wired.
	if _, err := s.Set(45); err != nil {
		t.Fatal(err)
	}
	relayOn, _ := fake.State()
	if !relayOn {
		t.Error("relay off for a non-zero intent on relay-only hardware")
	}
	if got := s.CurrentIntensity(); got != 100 {
		t.Errorf("intensity = %d, want 100", got)
	}
}

func TestSmartSwitchDimmerOnly(t *testing.T) {
	fake := hw.NewFakeSwitch()
	fake.WithRelay = false
	s := newSmart(t, fake, true)

	if _, err := s.Set(100); err != nil {
		t.Fatal(err)
	}
	_, dimLevel := fake.State()
	if dimLevel != 100 {
		t.Errorf("dimmer = %d, want 100", dimLevel)
	}
}

func TestSmartSwitchEdgeTriggeredWrites(t *testing.T) {
	fake := hw.NewFakeSwitch()
	s := newSmart(t, fake, true)

	if _, err := s.Set(45); err != nil {
		t.Fatal(err)
	}
	n := len(fake.Ops)

	changed, err := s.Set(45)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("identical set reported a change")
	}
	if len(fake.Ops) != n {
		t.Errorf("identical set wrote hardware: %v", fake.Ops[n:])
	}
}

func TestSmartSwitchLocked(t *testing.T) {
	fake := hw.NewFakeSwitch()
	s := NewSmartSwitch(fake, newMemStore(), true, true, slog.Default())

	if _, err := s.Set(45); !errors.Is(err, ErrSwitchLocked) {
		t.Fatalf("err = %v, want ErrSwitchLocked", err)
	}
	if len(fake.Ops) != 0 {
		t.Errorf("hardware written while locked: %v", fake.Ops)
	}

	// Unlocking applies the pending intent.
	if _, err := s.SetAllowSwitching(true); err != nil {
		t.Fatal(err)
	}
	if got := s.CurrentIntensity(); got != 45 {
		t.Errorf("intensity after unlock = %d, want 45", got)
	}
}

func TestSmartSwitchPersistsState(t *testing.T) {
	fake := hw.NewFakeSwitch()
	db := newMemStore()
	s := NewSmartSwitch(fake, db, true, false, slog.Default())

	if _, err := s.Set(60); err != nil {
		t.Fatal(err)
	}
	saved, err := db.GetSwitchState()
	if err != nil {
		t.Fatal(err)
	}
	if saved.Intensity != 60 || saved.DimmerLevel != 60 || saved.RelayOn {
		t.Errorf("persisted state = %+v", saved)
	}
}
