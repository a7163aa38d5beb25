package behaviour

import "crownstone-home/internal/daytime"

// Conflict resolution between simultaneously active behaviours. Pure
// comparison functions; the handler uses them to find a unique winner or
// detect an unresolvable tie.

// PresenceIsMoreRelevant reports whether lhs's presence predicate is
// strictly more specific than rhs's: room-scoped conditions outrank
// sphere-wide ones, absence outranks presence, VacuouslyTrue ranks last.
func PresenceIsMoreRelevant(lhs, rhs Predicate) bool {
	return lhs.relevance() > rhs.relevance()
}

// FromUntilIntervalIsMoreRelevantOrEqual reports whether the lhs time window
// is at least as relevant as the rhs one at the given time of day. The
// window that started more recently wins; windows that started at the same
// instant are ranked by which ends sooner (the tighter window wins).
//
// Both windows are assumed to contain now (callers only compare behaviours
// that are simultaneously active). Normalizing all boundaries relative to
// now makes the comparison immune to midnight roll-over.
func FromUntilIntervalIsMoreRelevantOrEqual(lhsFrom, lhsUntil, rhsFrom, rhsUntil, now daytime.TimeOfDay) bool {
	lhsFromNorm := mod(int(lhsFrom) - int(now))
	rhsFromNorm := mod(int(rhsFrom) - int(now))
	lhsUntilNorm := mod(int(lhsUntil) - int(now))
	rhsUntilNorm := mod(int(rhsUntil) - int(now))

	if lhsFromNorm > rhsFromNorm {
		// lhs started less far in the past.
		return true
	}
	if lhsFromNorm == rhsFromNorm && lhsUntilNorm <= rhsUntilNorm {
		// lhs ends no later than rhs.
		return true
	}
	return false
}

// FromUntilIntervalIsEqual reports whether both behaviours are non-nil and
// have exactly the same from/until boundaries.
func FromUntilIntervalIsEqual(lhs, rhs Behaviour) bool {
	return lhs != nil && rhs != nil && lhs.From() == rhs.From() && lhs.Until() == rhs.Until()
}

// mod reduces v into [0, SecondsPerDay).
func mod(v int) int {
	v %= daytime.SecondsPerDay
	if v < 0 {
		v += daytime.SecondsPerDay
	}
	return v
}
