package daytime

import (
	"log/slog"
	"sync"

	"crownstone-home/internal/bus"
)

// Time is a local wall-clock timestamp in POSIX-like seconds. The zero value
// is invalid, meaning the clock has never been synchronized.
type Time struct {
	posix int64
}

// NewTime builds a Time from a posix timestamp (already shifted into the
// local time zone by whoever synchronizes the clock).
func NewTime(posix int64) Time { return Time{posix: posix} }

// Valid reports whether the timestamp has ever been set.
func (t Time) Valid() bool { return t.posix > 0 }

// Posix returns the raw timestamp.
func (t Time) Posix() int64 { return t.posix }

// TimeOfDay projects the timestamp onto seconds since midnight.
func (t Time) TimeOfDay() TimeOfDay {
	return TimeOfDay(((t.posix % SecondsPerDay) + SecondsPerDay) % SecondsPerDay)
}

// DayOfWeek returns the weekday of the timestamp. The epoch (day 0) was a
// Thursday.
func (t Time) DayOfWeek() DayOfWeek {
	days := t.posix / SecondsPerDay
	return DayOfWeek(4).Add(int(days % 7))
}

// Add returns the timestamp shifted by the given number of seconds.
func (t Time) Add(seconds int64) Time { return Time{posix: t.posix + seconds} }

// SystemTime keeps track of wall-clock time from a periodic tick plus
// externally injected absolute corrections. It owns the tick counter and
// dispatches EventTick and EventTimeSet.
type SystemTime struct {
	mu          sync.Mutex
	bus         *bus.Bus
	logger      *slog.Logger
	syncedPosix int64  // last injected absolute time, 0 = never synced
	syncedAt    uint32 // uptime at the moment of injection
	uptime      uint32 // seconds since boot
	tickCount   uint32
}

// NewSystemTime creates an unsynchronized system clock.
func NewSystemTime(b *bus.Bus, logger *slog.Logger) *SystemTime {
	return &SystemTime{bus: b, logger: logger.With("component", "systemtime")}
}

// Tick advances the clock by one second and dispatches EventTick.
// The main loop calls this once per second.
func (s *SystemTime) Tick() {
	s.mu.Lock()
	s.uptime++
	s.tickCount++
	payload := bus.TickPayload{Count: s.tickCount, Uptime: s.uptime}
	s.mu.Unlock()

	s.bus.Emit(bus.Event{Type: bus.EventTick, Data: payload})
}

// SetTime injects an absolute time correction and dispatches EventTimeSet.
func (s *SystemTime) SetTime(posix int64) {
	s.mu.Lock()
	s.syncedPosix = posix
	s.syncedAt = s.uptime
	s.mu.Unlock()

	s.logger.Info("time set", "posix", posix)
	s.bus.Emit(bus.Event{Type: bus.EventTimeSet, Data: bus.TimeSetPayload{Posix: posix}})
}

// Now returns the current wall-clock time. Invalid until SetTime has been
// called at least once.
func (s *SystemTime) Now() Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncedPosix == 0 {
		return Time{}
	}
	return Time{posix: s.syncedPosix + int64(s.uptime-s.syncedAt)}
}

// Uptime returns seconds since boot.
func (s *SystemTime) Uptime() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uptime
}
