package behaviour

import (
	"encoding/binary"
	"errors"
	"fmt"

	"crownstone-home/internal/daytime"
)

// Wire format, version 1, little-endian throughout.
//
//	offset size field
//	0      1    version
//	1      1    type (0 = switch, 1 = twilight)
//	2      1    intensity [0,100]
//	3      1    profile
//	4      1    day mask (bit 0 = sunday)
//	5      4    from, seconds since midnight
//	9      4    until, seconds since midnight
//
// Switch behaviours append the presence condition:
//
//	13     1    predicate condition
//	14     8    predicate rooms mask
//	22     4    grace timeout, seconds
const (
	codecVersion = 1

	coreRecordSize     = 13
	switchRecordSize   = coreRecordSize + 13
	twilightRecordSize = coreRecordSize
)

var (
	ErrBadRecord  = errors.New("malformed behaviour record")
	ErrBadVersion = errors.New("unsupported behaviour record version")
)

// Encode serializes the switch behaviour to its wire record.
func (b *SwitchBehaviour) Encode() []byte {
	buf := make([]byte, switchRecordSize)
	b.core.encode(buf, TypeSwitch)
	buf[13] = uint8(b.condition.Predicate.Condition)
	binary.LittleEndian.PutUint64(buf[14:22], b.condition.Predicate.Rooms)
	binary.LittleEndian.PutUint32(buf[22:26], b.condition.TimeoutSeconds)
	return buf
}

// Encode serializes the twilight behaviour to its wire record.
func (b *TwilightBehaviour) Encode() []byte {
	buf := make([]byte, twilightRecordSize)
	b.core.encode(buf, TypeTwilight)
	return buf
}

func (c *core) encode(buf []byte, typ Type) {
	buf[0] = codecVersion
	buf[1] = uint8(typ)
	buf[2] = c.intensity
	buf[3] = c.profile
	buf[4] = uint8(c.days)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(c.from))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(c.until))
}

// Decode parses a wire record into a validated behaviour.
func Decode(record []byte) (Behaviour, error) {
	if len(record) < coreRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadRecord, len(record))
	}
	if record[0] != codecVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, record[0])
	}

	c := core{
		intensity: record[2],
		profile:   record[3],
		days:      daytime.DayMask(record[4]),
		from:      daytime.TimeOfDay(binary.LittleEndian.Uint32(record[5:9])),
		until:     daytime.TimeOfDay(binary.LittleEndian.Uint32(record[9:13])),
	}

	switch Type(record[1]) {
	case TypeSwitch:
		if len(record) != switchRecordSize {
			return nil, fmt.Errorf("%w: switch record is %d bytes, want %d", ErrBadRecord, len(record), switchRecordSize)
		}
		cond := PresenceCondition{
			Predicate: Predicate{
				Condition: Condition(record[13]),
				Rooms:     binary.LittleEndian.Uint64(record[14:22]),
			},
			TimeoutSeconds: binary.LittleEndian.Uint32(record[22:26]),
		}
		return NewSwitchBehaviour(c.intensity, c.profile, c.days, c.from, c.until, cond)
	case TypeTwilight:
		if len(record) != twilightRecordSize {
			return nil, fmt.Errorf("%w: twilight record is %d bytes, want %d", ErrBadRecord, len(record), twilightRecordSize)
		}
		return NewTwilightBehaviour(c.intensity, c.profile, c.days, c.from, c.until)
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrBadRecord, record[1])
	}
}
