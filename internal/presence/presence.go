// Package presence maintains the room-occupancy view consumed by the
// behaviour resolvers. Occupancy arrives as external detection reports
// (app, MQTT, mesh) and decays after a timeout; resolvers only ever see
// immutable bitmask snapshots.
package presence

import (
	"log/slog"
	"sync"

	"crownstone-home/internal/bus"
)

// MaxProfiles is the width of the occupancy bitmask.
const MaxProfiles = 64

// Description is a room-occupancy snapshot: bit N set means profile/room N
// is currently occupied. It is a value type; snapshots never alias the
// tracker's mutable state.
type Description uint64

// Anyone reports whether any profile is present.
func (d Description) Anyone() bool { return d != 0 }

// AnyIn reports whether any profile in the given room mask is present.
func (d Description) AnyIn(rooms uint64) bool { return uint64(d)&rooms != 0 }

// Bitmask returns the raw occupancy bits.
func (d Description) Bitmask() uint64 { return uint64(d) }

// DefaultTimeoutSeconds is how long a presence report stays valid without
// being refreshed.
const DefaultTimeoutSeconds = 10 * 60

// Tracker accumulates presence reports and expires them on ticks.
// A tracker that has never received a report reads as all-absent.
type Tracker struct {
	mu         sync.Mutex
	lastSeen   [MaxProfiles]uint32 // uptime of last report, 0 = absent
	uptime     uint32
	timeoutSec uint32
	bus        *bus.Bus
	logger     *slog.Logger
}

// NewTracker creates a presence tracker. timeoutSec 0 selects the default.
func NewTracker(b *bus.Bus, timeoutSec uint32, logger *slog.Logger) *Tracker {
	if timeoutSec == 0 {
		timeoutSec = DefaultTimeoutSeconds
	}
	return &Tracker{
		timeoutSec: timeoutSec,
		bus:        b,
		logger:     logger.With("component", "presence"),
	}
}

// Current returns an immutable occupancy snapshot.
func (t *Tracker) Current() Description {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.describe()
}

// describe must be called with the lock held.
func (t *Tracker) describe() Description {
	var d Description
	for i, seen := range t.lastSeen {
		if seen != 0 {
			d |= 1 << uint(i)
		}
	}
	return d
}

// Report records an external detection event for a profile. present=false
// clears the profile immediately (explicit exit report).
func (t *Tracker) Report(profile uint8, present bool) {
	if profile >= MaxProfiles {
		t.logger.Warn("presence report for out-of-range profile", "profile", profile)
		return
	}

	t.mu.Lock()
	before := t.describe()
	if present {
		// uptime may be 0 just after boot; bias so "seen" is never 0.
		t.lastSeen[profile] = t.uptime + 1
	} else {
		t.lastSeen[profile] = 0
	}
	after := t.describe()
	t.mu.Unlock()

	t.mutated(before, after)
}

// Tick advances the tracker clock and expires stale reports. Wired to
// EventTick by the caller; registered before the resolvers so they observe
// post-expiry snapshots.
func (t *Tracker) Tick(uptime uint32) {
	t.mu.Lock()
	t.uptime = uptime
	before := t.describe()
	for i, seen := range t.lastSeen {
		if seen != 0 && uptime-(seen-1) > t.timeoutSec {
			t.lastSeen[i] = 0
		}
	}
	after := t.describe()
	t.mu.Unlock()

	if before != after {
		t.mutated(before, after)
	}
}

func (t *Tracker) mutated(before, after Description) {
	if before == after {
		return
	}
	kind := bus.PresenceChanged
	switch {
	case !before.Anyone() && after.Anyone():
		kind = bus.PresenceFirstEnterSphere
	case before.Anyone() && !after.Anyone():
		kind = bus.PresenceLastExitSphere
	}
	t.logger.Debug("presence mutated", "bitmask", uint64(after), "kind", kind)
	t.bus.Emit(bus.Event{
		Type: bus.EventPresenceMutation,
		Data: bus.PresencePayload{Bitmask: uint64(after), Kind: kind},
	})
}
