package bus

import (
	"log/slog"
	"testing"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return New(slog.Default())
}

func TestEmitDeliversToMatchingHandlers(t *testing.T) {
	b := newTestBus(t)

	var got []string
	b.On(EventTick, func(e Event) { got = append(got, "tick") })
	b.On(EventTimeSet, func(e Event) { got = append(got, "time_set") })
	b.OnAll(func(e Event) { got = append(got, "all:"+e.Type) })

	b.Emit(Event{Type: EventTick})

	if len(got) != 2 {
		t.Fatalf("handlers called = %d, want 2 (%v)", len(got), got)
	}
	if got[0] != "tick" || got[1] != "all:tick" {
		t.Errorf("got %v", got)
	}
}

func TestEmitRegistrationOrder(t *testing.T) {
	b := newTestBus(t)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		b.On(EventTick, func(Event) { order = append(order, i) })
	}

	b.Emit(Event{Type: EventTick})

	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order %v, want registration order", order)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := newTestBus(t)

	calls := 0
	unsub := b.On(EventTick, func(Event) { calls++ })
	b.Emit(Event{Type: EventTick})
	unsub()
	b.Emit(Event{Type: EventTick})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEmitRecoversPanic(t *testing.T) {
	b := newTestBus(t)

	called := false
	b.On(EventTick, func(Event) { panic("boom") })
	b.On(EventTick, func(Event) { called = true })

	b.Emit(Event{Type: EventTick})

	if !called {
		t.Error("handler after panicking handler not called")
	}
}
