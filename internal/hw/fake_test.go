package hw

import (
	"errors"
	"testing"
)

func TestFakeSwitchRecordsOps(t *testing.T) {
	f := NewFakeSwitch()

	if err := f.SetRelay(true); err != nil {
		t.Fatal(err)
	}
	if err := f.SetDimmer(45); err != nil {
		t.Fatal(err)
	}
	if err := f.SetRelay(false); err != nil {
		t.Fatal(err)
	}

	want := []string{"relay=on", "dimmer=45", "relay=off"}
	if len(f.Ops) != len(want) {
		t.Fatalf("ops = %v, want %v", f.Ops, want)
	}
	for i := range want {
		if f.Ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, f.Ops[i], want[i])
		}
	}

	relayOn, dimLevel := f.State()
	if relayOn || dimLevel != 45 {
		t.Errorf("state = (%v, %d), want (false, 45)", relayOn, dimLevel)
	}
}

func TestFakeSwitchErrors(t *testing.T) {
	f := NewFakeSwitch()
	f.DimmerErr = errors.New("boom")

	if err := f.SetDimmer(10); err == nil {
		t.Error("expected dimmer error")
	}
	if len(f.Ops) != 0 {
		t.Errorf("failed actuation was recorded: %v", f.Ops)
	}
}

func TestFakeSwitchClose(t *testing.T) {
	f := NewFakeSwitch()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.Closed {
		t.Error("Closed = false after Close")
	}
}
