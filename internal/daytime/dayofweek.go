package daytime

// DayOfWeek is a weekday, Sunday = 0 through Saturday = 6.
type DayOfWeek uint8

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func (d DayOfWeek) String() string {
	return dayNames[d%7]
}

// Add returns the weekday offset days later (or earlier, for negative
// offsets), reduced modulo 7.
func (d DayOfWeek) Add(offset int) DayOfWeek {
	v := (int(d) + offset) % 7
	if v < 0 {
		v += 7
	}
	return DayOfWeek(v)
}

// DayMask is a bitmask of weekdays, bit N = day N active.
type DayMask uint8

// EveryDay has all seven weekday bits set.
const EveryDay DayMask = 0x7F

// Contains reports whether the mask has the bit for day d set.
func (m DayMask) Contains(d DayOfWeek) bool {
	return m&(1<<(d%7)) != 0
}

// Valid reports whether no bits outside the seven weekdays are set.
func (m DayMask) Valid() bool {
	return m <= EveryDay
}
