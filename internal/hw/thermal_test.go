package hw

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"crownstone-home/internal/bus"
)

func writeTemp(t *testing.T, path, value string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestThermalMonitorTripsOnce(t *testing.T) {
	logger := slog.Default()
	b := bus.New(logger)
	path := filepath.Join(t.TempDir(), "temp")
	writeTemp(t, path, "45000\n")

	var events []bool
	b.On(bus.EventOverheat, func(e bus.Event) {
		if p, ok := e.Data.(bus.FlagPayload); ok {
			events = append(events, p.Value)
		}
	})

	m := NewThermalMonitor(b, path, 75, logger)
	m.Start()
	defer m.Close()

	tick := func() { b.Emit(bus.Event{Type: bus.EventTick, Data: bus.TickPayload{}}) }

	tick()
	if len(events) != 0 || m.Tripped() {
		t.Fatalf("tripped below threshold: events=%v", events)
	}

	writeTemp(t, path, "82000\n")
	tick()
	if len(events) != 1 || !events[0] {
		t.Fatalf("events = %v, want one trip", events)
	}
	if !m.Tripped() {
		t.Error("monitor not latched")
	}

	// Latched: hot or cold, no further events.
	tick()
	writeTemp(t, path, "30000\n")
	tick()
	if len(events) != 1 {
		t.Errorf("events = %v, want the latch to hold", events)
	}
}

func TestThermalMonitorIgnoresUnreadableZone(t *testing.T) {
	logger := slog.Default()
	b := bus.New(logger)
	m := NewThermalMonitor(b, filepath.Join(t.TempDir(), "missing"), 0, logger)
	m.Start()
	defer m.Close()

	b.Emit(bus.Event{Type: bus.EventTick, Data: bus.TickPayload{}})
	if m.Tripped() {
		t.Error("tripped on unreadable zone")
	}
}
