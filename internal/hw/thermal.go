package hw

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"crownstone-home/internal/bus"
)

// DefaultOverheatCelsius is the dimmer temperature guard threshold.
const DefaultOverheatCelsius = 75

// ThermalMonitor samples a kernel thermal zone once a second and raises the
// overheat event when the dimmer region gets too hot. The trip latches: once
// raised it never re-arms until restart, matching the arbitration side which
// keeps dimming revoked.
type ThermalMonitor struct {
	bus        *bus.Bus
	path       string
	thresholdC int
	logger     *slog.Logger

	tripped bool
	unsub   func()
}

// NewThermalMonitor reads millidegree values from path, typically
// /sys/class/thermal/thermal_zone0/temp. thresholdC 0 selects the default.
func NewThermalMonitor(b *bus.Bus, path string, thresholdC int, logger *slog.Logger) *ThermalMonitor {
	if thresholdC == 0 {
		thresholdC = DefaultOverheatCelsius
	}
	return &ThermalMonitor{
		bus:        b,
		path:       path,
		thresholdC: thresholdC,
		logger:     logger.With("component", "thermal"),
	}
}

// Start subscribes the monitor to the tick event.
func (m *ThermalMonitor) Start() {
	m.unsub = m.bus.On(bus.EventTick, func(e bus.Event) { m.sample() })
}

// Close drops the tick subscription.
func (m *ThermalMonitor) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Tripped reports whether the guard has fired.
func (m *ThermalMonitor) Tripped() bool { return m.tripped }

func (m *ThermalMonitor) sample() {
	if m.tripped {
		return
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Debug("read thermal zone", "path", m.path, "error", err)
		return
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		m.logger.Debug("parse thermal zone", "path", m.path, "error", err)
		return
	}
	if milli/1000 < m.thresholdC {
		return
	}
	m.tripped = true
	m.logger.Warn("dimmer temperature guard tripped",
		"celsius", milli/1000, "threshold", m.thresholdC)
	m.bus.Emit(bus.Event{
		Type: bus.EventOverheat,
		Data: bus.FlagPayload{Value: true},
	})
}
