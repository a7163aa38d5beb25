// Package daytime provides the wall-clock view the behaviour resolvers run
// on: time-of-day, day-of-week and a tick-driven system clock that accepts
// externally injected absolute-time corrections.
package daytime

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondsPerDay is the length of a day in seconds.
const SecondsPerDay = 24 * 60 * 60

// TimeOfDay is a time of day in seconds since midnight, [0, SecondsPerDay).
type TimeOfDay uint32

// NewTimeOfDay builds a TimeOfDay from hours, minutes and seconds,
// normalized into a single day.
func NewTimeOfDay(h, m, s int) TimeOfDay {
	total := ((h*3600+m*60+s)%SecondsPerDay + SecondsPerDay) % SecondsPerDay
	return TimeOfDay(total)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM or HH:MM:SS", s)
	}
	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
		hms[i] = v
	}
	if hms[0] < 0 || hms[0] > 23 || hms[1] < 0 || hms[1] > 59 || hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("parse time of day %q: out of range", s)
	}
	return NewTimeOfDay(hms[0], hms[1], hms[2]), nil
}

// Hour returns the hour component [0,23].
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component [0,59].
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component [0,59].
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// InWindow reports whether t falls inside the half-open window [from, until).
// A window with from > until wraps past midnight: t matches iff t >= from or
// t < until. A window with from == until is empty and matches nothing.
func (t TimeOfDay) InWindow(from, until TimeOfDay) bool {
	switch {
	case from < until:
		return from <= t && t < until
	case from > until:
		return from <= t || t < until
	default:
		return false
	}
}
