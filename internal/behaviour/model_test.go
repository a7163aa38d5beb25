package behaviour

import (
	"bytes"
	"errors"
	"testing"

	"crownstone-home/internal/daytime"
	"crownstone-home/internal/presence"
)

// 2020-01-01 00:00 local, a Wednesday.
const baseWednesday = 1577836800

func wednesdayAt(h, m int) daytime.Time {
	return daytime.NewTime(baseWednesday + int64(h)*3600 + int64(m)*60)
}

func anyone() PresenceCondition {
	return PresenceCondition{Predicate: Predicate{Condition: AnyoneInSphere}, TimeoutSeconds: 300}
}

func TestSwitchBehaviourActiveAt(t *testing.T) {
	b, err := NewSwitchBehaviour(80, 0, daytime.EveryDay, tod(8, 0), tod(22, 0), anyone())
	if err != nil {
		t.Fatal(err)
	}

	if !b.ActiveAt(wednesdayAt(10, 0)) {
		t.Error("not active at 10:00 inside window")
	}
	if b.ActiveAt(wednesdayAt(23, 0)) {
		t.Error("active at 23:00 outside window")
	}
	if b.ActiveAt(daytime.Time{}) {
		t.Error("active at invalid time")
	}
}

func TestSwitchBehaviourDayMask(t *testing.T) {
	onlyMonday := daytime.DayMask(1 << daytime.Monday)
	b, err := NewSwitchBehaviour(80, 0, onlyMonday, tod(8, 0), tod(22, 0), anyone())
	if err != nil {
		t.Fatal(err)
	}
	if b.ActiveAt(wednesdayAt(10, 0)) {
		t.Error("monday-only behaviour active on wednesday")
	}
}

func TestBehaviourRejectsEmptyWindow(t *testing.T) {
	if _, err := NewSwitchBehaviour(80, 0, daytime.EveryDay, tod(9, 0), tod(9, 0), anyone()); err == nil {
		t.Error("from == until accepted")
	}
	if _, err := NewTwilightBehaviour(50, 0, daytime.EveryDay, tod(9, 0), tod(9, 0)); err == nil {
		t.Error("from == until accepted for twilight")
	}
}

func TestBehaviourRejectsBadFields(t *testing.T) {
	if _, err := NewSwitchBehaviour(101, 0, daytime.EveryDay, tod(8, 0), tod(22, 0), anyone()); err == nil {
		t.Error("intensity 101 accepted")
	}
	if _, err := NewSwitchBehaviour(80, 0, daytime.DayMask(0x80), tod(8, 0), tod(22, 0), anyone()); err == nil {
		t.Error("day mask with bit 7 accepted")
	}
	bad := PresenceCondition{Predicate: Predicate{Condition: Condition(9)}}
	if _, err := NewSwitchBehaviour(80, 0, daytime.EveryDay, tod(8, 0), tod(22, 0), bad); err == nil {
		t.Error("unknown presence condition accepted")
	}
}

func TestPresenceGracePeriod(t *testing.T) {
	cond := PresenceCondition{Predicate: Predicate{Condition: AnyoneInSphere}, TimeoutSeconds: 60}
	b, err := NewSwitchBehaviour(80, 0, daytime.EveryDay, tod(8, 0), tod(22, 0), cond)
	if err != nil {
		t.Fatal(err)
	}

	// Present at uptime 100.
	if !b.PresenceValid(presence.Description(1), 100) {
		t.Fatal("presence condition not satisfied while present")
	}
	// Everyone left; inside grace.
	if !b.PresenceValid(presence.Description(0), 150) {
		t.Error("condition dropped inside grace period")
	}
	if !b.InGracePeriod(presence.Description(0), 150) {
		t.Error("InGracePeriod = false during grace")
	}
	// Past grace.
	if b.PresenceValid(presence.Description(0), 161) {
		t.Error("condition held past grace period")
	}
	// Grace does not re-arm without a fresh valid observation.
	if b.PresenceValid(presence.Description(0), 162) {
		t.Error("condition re-armed without presence")
	}
}

func TestCodecRoundTripSwitch(t *testing.T) {
	cond := PresenceCondition{
		Predicate:      Predicate{Condition: NooneInRoom, Rooms: 0b1010},
		TimeoutSeconds: 300,
	}
	b, err := NewSwitchBehaviour(80, 2, daytime.DayMask(0x55), tod(22, 30), tod(6, 15), cond)
	if err != nil {
		t.Fatal(err)
	}

	record := b.Encode()
	if len(record) != switchRecordSize {
		t.Fatalf("record size = %d, want %d", len(record), switchRecordSize)
	}

	decoded, err := Decode(record)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*SwitchBehaviour)
	if !ok {
		t.Fatalf("decoded to %T, want *SwitchBehaviour", decoded)
	}
	if !bytes.Equal(got.Encode(), record) {
		t.Error("re-encoded record differs")
	}
	if got.Condition() != cond {
		t.Errorf("condition = %+v, want %+v", got.Condition(), cond)
	}
	if got.Profile() != 2 {
		t.Errorf("profile = %d, want 2", got.Profile())
	}
}

func TestCodecRoundTripTwilight(t *testing.T) {
	b, err := NewTwilightBehaviour(50, 0, daytime.EveryDay, tod(18, 0), tod(6, 0))
	if err != nil {
		t.Fatal(err)
	}

	record := b.Encode()
	if len(record) != twilightRecordSize {
		t.Fatalf("record size = %d, want %d", len(record), twilightRecordSize)
	}

	decoded, err := Decode(record)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Type() != TypeTwilight || decoded.Intensity() != 50 {
		t.Errorf("decoded type=%v intensity=%d", decoded.Type(), decoded.Intensity())
	}
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	good, _ := NewTwilightBehaviour(50, 0, daytime.EveryDay, tod(18, 0), tod(6, 0))
	record := good.Encode()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(r []byte) []byte { return r[:5] }, ErrBadRecord},
		{"bad version", func(r []byte) []byte { r[0] = 9; return r }, ErrBadVersion},
		{"bad type", func(r []byte) []byte { r[1] = 7; return r }, ErrBadRecord},
		{"truncated switch", func(r []byte) []byte { r[1] = uint8(TypeSwitch); return r }, ErrBadRecord},
	}
	for _, tt := range tests {
		r := make([]byte, len(record))
		copy(r, record)
		if _, err := Decode(tt.mutate(r)); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	// Records that decode but fail validation.
	r := make([]byte, len(record))
	copy(r, record)
	r[2] = 200 // intensity out of range
	if _, err := Decode(r); err == nil {
		t.Error("intensity 200 decoded without error")
	}
}
