package behaviour

import (
	"testing"

	"crownstone-home/internal/daytime"
)

func tod(h, m int) daytime.TimeOfDay { return daytime.NewTimeOfDay(h, m, 0) }

func TestIntervalMoreRecentStartWins(t *testing.T) {
	now := tod(20, 0)
	// Started 19:00 vs started 08:00: the later start is more relevant.
	if !FromUntilIntervalIsMoreRelevantOrEqual(tod(19, 0), tod(23, 0), tod(8, 0), tod(23, 0), now) {
		t.Error("19:00 start not ranked above 08:00 start")
	}
	if FromUntilIntervalIsMoreRelevantOrEqual(tod(8, 0), tod(23, 0), tod(19, 0), tod(23, 0), now) {
		t.Error("08:00 start ranked above 19:00 start")
	}
}

func TestIntervalSameStartTighterEndWins(t *testing.T) {
	now := tod(10, 0)
	if !FromUntilIntervalIsMoreRelevantOrEqual(tod(9, 0), tod(11, 0), tod(9, 0), tod(22, 0), now) {
		t.Error("tighter window not ranked above wider one")
	}
	if FromUntilIntervalIsMoreRelevantOrEqual(tod(9, 0), tod(22, 0), tod(9, 0), tod(11, 0), now) {
		t.Error("wider window ranked above tighter one")
	}
}

func TestIntervalEqualIsMutuallyRelevant(t *testing.T) {
	now := tod(10, 0)
	if !FromUntilIntervalIsMoreRelevantOrEqual(tod(9, 0), tod(11, 0), tod(9, 0), tod(11, 0), now) {
		t.Error("identical window not relevant-or-equal to itself")
	}
}

func TestIntervalRankingAcrossMidnight(t *testing.T) {
	// At 01:00, a window that started at 00:30 outranks one that started
	// at 18:00 the evening before.
	now := tod(1, 0)
	if !FromUntilIntervalIsMoreRelevantOrEqual(tod(0, 30), tod(6, 0), tod(18, 0), tod(6, 0), now) {
		t.Error("00:30 start not ranked above 18:00 start at 01:00")
	}
	if FromUntilIntervalIsMoreRelevantOrEqual(tod(18, 0), tod(6, 0), tod(0, 30), tod(6, 0), now) {
		t.Error("18:00 start ranked above 00:30 start at 01:00")
	}
}

// For distinct windows exactly one direction may be strictly more relevant.
func TestIntervalAntisymmetry(t *testing.T) {
	now := tod(12, 0)
	windows := []struct{ from, until daytime.TimeOfDay }{
		{tod(8, 0), tod(22, 0)},
		{tod(11, 0), tod(13, 0)},
		{tod(11, 0), tod(18, 0)},
		{tod(6, 0), tod(14, 0)},
		{tod(20, 0), tod(13, 0)}, // wraps midnight
	}
	for i, a := range windows {
		for j, b := range windows {
			if i == j {
				continue
			}
			ab := FromUntilIntervalIsMoreRelevantOrEqual(a.from, a.until, b.from, b.until, now)
			ba := FromUntilIntervalIsMoreRelevantOrEqual(b.from, b.until, a.from, a.until, now)
			if ab && ba {
				t.Errorf("windows %d and %d rank above each other", i, j)
			}
			if !ab && !ba {
				t.Errorf("windows %d and %d rank below each other", i, j)
			}
		}
	}
}

func TestPresenceRelevanceOrdering(t *testing.T) {
	order := []Condition{VacuouslyTrue, AnyoneInSphere, NooneInSphere, AnyoneInRoom, NooneInRoom}
	for i, lo := range order {
		for _, hi := range order[i+1:] {
			if !PresenceIsMoreRelevant(Predicate{Condition: hi}, Predicate{Condition: lo}) {
				t.Errorf("%v not ranked above %v", hi, lo)
			}
			if PresenceIsMoreRelevant(Predicate{Condition: lo}, Predicate{Condition: hi}) {
				t.Errorf("%v ranked above %v", lo, hi)
			}
		}
	}
	if PresenceIsMoreRelevant(Predicate{Condition: AnyoneInRoom}, Predicate{Condition: AnyoneInRoom}) {
		t.Error("predicate ranked above itself")
	}
}

func TestFromUntilIntervalIsEqual(t *testing.T) {
	a, _ := NewTwilightBehaviour(50, 0, daytime.EveryDay, tod(18, 0), tod(6, 0))
	b, _ := NewTwilightBehaviour(80, 0, daytime.EveryDay, tod(18, 0), tod(6, 0))
	c, _ := NewTwilightBehaviour(50, 0, daytime.EveryDay, tod(18, 0), tod(7, 0))

	if !FromUntilIntervalIsEqual(a, b) {
		t.Error("identical windows not equal")
	}
	if FromUntilIntervalIsEqual(a, c) {
		t.Error("different windows equal")
	}
	if FromUntilIntervalIsEqual(nil, a) || FromUntilIntervalIsEqual(a, nil) {
		t.Error("nil behaviour compared equal")
	}
}
