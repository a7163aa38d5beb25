package behaviour

import (
	"fmt"

	"crownstone-home/internal/presence"
)

// Condition is the presence predicate variant of a switch behaviour.
type Condition uint8

// Ordered by specificity: later values outrank earlier ones when breaking
// ties between behaviours with identical time windows.
const (
	VacuouslyTrue Condition = iota
	AnyoneInSphere
	NooneInSphere
	AnyoneInRoom
	NooneInRoom
)

func (c Condition) String() string {
	switch c {
	case VacuouslyTrue:
		return "always"
	case AnyoneInSphere:
		return "anyone_in_sphere"
	case NooneInSphere:
		return "noone_in_sphere"
	case AnyoneInRoom:
		return "anyone_in_room"
	case NooneInRoom:
		return "noone_in_room"
	default:
		return fmt.Sprintf("condition(%d)", uint8(c))
	}
}

// Predicate is a condition over the room-presence bitmask, optionally scoped
// to a subset of rooms.
type Predicate struct {
	Condition Condition
	Rooms     uint64 // bit N = room/profile N, used by the *InRoom variants
}

// Holds evaluates the predicate against an occupancy snapshot.
func (p Predicate) Holds(d presence.Description) bool {
	switch p.Condition {
	case VacuouslyTrue:
		return true
	case AnyoneInSphere:
		return d.Anyone()
	case NooneInSphere:
		return !d.Anyone()
	case AnyoneInRoom:
		return d.AnyIn(p.Rooms)
	case NooneInRoom:
		return !d.AnyIn(p.Rooms)
	default:
		return false
	}
}

// relevance ranks predicate specificity: room-scoped outranks sphere-wide,
// absence outranks presence, VacuouslyTrue is least relevant. Unknown
// conditions rank below everything.
func (p Predicate) relevance() int {
	if p.Condition > NooneInRoom {
		return -1
	}
	return int(p.Condition)
}

// PresenceCondition pairs a predicate with the grace timeout applied after
// the predicate stops holding.
type PresenceCondition struct {
	Predicate      Predicate
	TimeoutSeconds uint32
}

func (c PresenceCondition) validate() error {
	if c.Predicate.Condition > NooneInRoom {
		return fmt.Errorf("unknown presence condition %d", c.Predicate.Condition)
	}
	return nil
}

func (c PresenceCondition) String() string {
	return fmt.Sprintf("%s rooms(%#x) timeout(%ds)",
		c.Predicate.Condition, c.Predicate.Rooms, c.TimeoutSeconds)
}
