package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListBehaviours(t *testing.T) {
	s := newTestStore(t)

	recs := map[uint8][]byte{
		0:  {1, 0, 80, 0, 0x7F, 0, 0, 0, 0, 0, 0, 0, 0},
		7:  {1, 1, 50, 0, 0x7F, 0, 0, 0, 0, 0, 0, 0, 0},
		49: {1, 0, 0, 0, 0x01, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	for idx, rec := range recs {
		if err := s.SaveBehaviour(idx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListBehaviours()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(recs) {
		t.Fatalf("listed %d records, want %d", len(got), len(recs))
	}
	for idx, rec := range recs {
		if !bytes.Equal(got[idx], rec) {
			t.Errorf("record %d = %x, want %x", idx, got[idx], rec)
		}
	}
}

func TestDeleteBehaviour(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveBehaviour(3, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBehaviour(3); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBehaviours()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("listed %d records after delete, want 0", len(got))
	}
}

func TestClearBehaviours(t *testing.T) {
	s := newTestStore(t)

	for idx := uint8(0); idx < 5; idx++ {
		if err := s.SaveBehaviour(idx, []byte{idx}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ClearBehaviours(); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBehaviours()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("listed %d records after clear, want 0", len(got))
	}
}

func TestSwitchStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetSwitchState(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh store: err = %v, want ErrNotFound", err)
	}

	state := &SwitchState{Intensity: 80, RelayOn: false, DimmerLevel: 80}
	if err := s.SaveSwitchState(state); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSwitchState()
	if err != nil {
		t.Fatal(err)
	}
	if *got != *state {
		t.Errorf("state = %+v, want %+v", got, state)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetSettings(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh store: err = %v, want ErrNotFound", err)
	}

	settings := &Settings{DimmingAllowed: true, SwitchLocked: false, BehaviourEnabled: true}
	if err := s.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if *got != *settings {
		t.Errorf("settings = %+v, want %+v", got, settings)
	}
}
