// Package behaviour implements the rule store and the resolvers that turn
// (time, presence) into an intended switch output: switch behaviours decide
// the on/off/dim intent, twilight behaviours impose a dim ceiling.
package behaviour

import (
	"fmt"

	"crownstone-home/internal/daytime"
	"crownstone-home/internal/presence"
)

// Type discriminates the behaviour variants on the wire and in the store.
type Type uint8

const (
	TypeSwitch   Type = 0
	TypeTwilight Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeSwitch:
		return "switch"
	case TypeTwilight:
		return "twilight"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Behaviour is a stored rule mapping (day-of-week, time window) to an
// intensity. Concrete variants: SwitchBehaviour, TwilightBehaviour.
type Behaviour interface {
	Type() Type
	Intensity() uint8
	Profile() uint8
	ActiveDays() daytime.DayMask
	From() daytime.TimeOfDay
	Until() daytime.TimeOfDay

	// ActiveAt reports whether the rule's day bit and time window match t.
	ActiveAt(t daytime.Time) bool

	// Encode serializes the behaviour to its wire record.
	Encode() []byte
}

// core carries the fields shared by both variants.
type core struct {
	intensity uint8
	profile   uint8
	days      daytime.DayMask
	from      daytime.TimeOfDay
	until     daytime.TimeOfDay
}

func (c *core) Intensity() uint8            { return c.intensity }
func (c *core) Profile() uint8              { return c.profile }
func (c *core) ActiveDays() daytime.DayMask { return c.days }
func (c *core) From() daytime.TimeOfDay     { return c.from }
func (c *core) Until() daytime.TimeOfDay    { return c.until }

func (c *core) activeAt(t daytime.Time) bool {
	if !t.Valid() {
		return false
	}
	if !c.days.Contains(t.DayOfWeek()) {
		return false
	}
	return t.TimeOfDay().InWindow(c.from, c.until)
}

func (c *core) validate() error {
	if c.intensity > 100 {
		return fmt.Errorf("intensity %d out of range [0,100]", c.intensity)
	}
	if !c.days.Valid() {
		return fmt.Errorf("day mask %#02x has bits outside the week", uint8(c.days))
	}
	if c.from >= daytime.SecondsPerDay || c.until >= daytime.SecondsPerDay {
		return fmt.Errorf("window %v-%v outside a day", c.from, c.until)
	}
	if c.from == c.until {
		// from == until is ambiguous (empty or full day), rejected at creation.
		return fmt.Errorf("window from == until (%v) is not allowed", c.from)
	}
	return nil
}

// SwitchBehaviour proposes the device's on/off/dim intent while its time
// window and presence condition hold.
type SwitchBehaviour struct {
	core
	condition PresenceCondition

	// lastPresenceOK is the uptime at which the presence predicate last held,
	// used for the "someone just left" grace period. Runtime state only,
	// never serialized. Mutated only from the dispatch goroutine.
	lastPresenceOK *uint32
}

// NewSwitchBehaviour builds and validates a switch behaviour.
func NewSwitchBehaviour(intensity, profile uint8, days daytime.DayMask, from, until daytime.TimeOfDay, cond PresenceCondition) (*SwitchBehaviour, error) {
	b := &SwitchBehaviour{
		core:      core{intensity: intensity, profile: profile, days: days, from: from, until: until},
		condition: cond,
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("switch behaviour: %w", err)
	}
	if err := cond.validate(); err != nil {
		return nil, fmt.Errorf("switch behaviour: %w", err)
	}
	return b, nil
}

func (b *SwitchBehaviour) Type() Type { return TypeSwitch }

// Condition returns the behaviour's presence condition.
func (b *SwitchBehaviour) Condition() PresenceCondition { return b.condition }

func (b *SwitchBehaviour) ActiveAt(t daytime.Time) bool { return b.activeAt(t) }

// PresenceValid evaluates the presence condition against the current
// occupancy, honouring the grace timeout: a condition that recently held
// stays valid for Condition().TimeoutSeconds after it stops holding.
func (b *SwitchBehaviour) PresenceValid(p presence.Description, uptime uint32) bool {
	if b.condition.Predicate.Holds(p) {
		u := uptime
		b.lastPresenceOK = &u
		return true
	}
	if b.lastPresenceOK != nil {
		if uptime-*b.lastPresenceOK <= b.condition.TimeoutSeconds {
			return true
		}
		// fell out of grace
		b.lastPresenceOK = nil
	}
	return false
}

// InGracePeriod reports whether the behaviour is currently valid only
// because of the presence grace timeout.
func (b *SwitchBehaviour) InGracePeriod(p presence.Description, uptime uint32) bool {
	return b.lastPresenceOK != nil && !b.condition.Predicate.Holds(p)
}

func (b *SwitchBehaviour) String() string {
	return fmt.Sprintf("switch %v-%v %d%% days(%#02x) %s",
		b.from, b.until, b.intensity, uint8(b.days), b.condition)
}

// TwilightBehaviour imposes a maximum dim level while its time window holds.
// It has no presence dimension.
type TwilightBehaviour struct {
	core
}

// NewTwilightBehaviour builds and validates a twilight behaviour.
func NewTwilightBehaviour(intensity, profile uint8, days daytime.DayMask, from, until daytime.TimeOfDay) (*TwilightBehaviour, error) {
	b := &TwilightBehaviour{
		core: core{intensity: intensity, profile: profile, days: days, from: from, until: until},
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("twilight behaviour: %w", err)
	}
	return b, nil
}

func (b *TwilightBehaviour) Type() Type { return TypeTwilight }

func (b *TwilightBehaviour) ActiveAt(t daytime.Time) bool { return b.activeAt(t) }

func (b *TwilightBehaviour) String() string {
	return fmt.Sprintf("twilight %v-%v %d%% days(%#02x)",
		b.from, b.until, b.intensity, uint8(b.days))
}
