package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a MinuteOfDay.
const MinutesPerDay = 1440

// MinuteOfDay encodes a time of day as minutes since midnight, in [0, 1440).
// Schedule ends may equal MinutesPerDay to close a block at midnight.
type MinuteOfDay int

// ParseMinuteOfDay accepts either an integer minute count ("600") or a clock value ("10:00").
func ParseMinuteOfDay(raw string) (MinuteOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty time of day")
	}
	if h, m, ok := strings.Cut(raw, ":"); ok {
		hours, err := strconv.Atoi(h)
		if err != nil {
			return 0, fmt.Errorf("invalid hour in %q", raw)
		}
		minutes, err := strconv.Atoi(m)
		if err != nil || minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("invalid minute in %q", raw)
		}
		value := MinuteOfDay(hours*60 + minutes)
		if !value.Valid() {
			return 0, fmt.Errorf("time of day %q out of range", raw)
		}
		return value, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	value := MinuteOfDay(n)
	if !value.Valid() {
		return 0, fmt.Errorf("time of day %d out of range", n)
	}
	return value, nil
}

// Valid reports whether m is a start-able time of day.
func (m MinuteOfDay) Valid() bool {
	return m >= 0 && m < MinutesPerDay
}

// ValidEnd reports whether m can close an interval (midnight allowed).
func (m MinuteOfDay) ValidEnd() bool {
	return m > 0 && m <= MinutesPerDay
}

// Clock renders the value as HH:MM.
func (m MinuteOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// String implements fmt.Stringer.
func (m MinuteOfDay) String() string {
	return m.Clock()
}

// Value stores the minute count as an integer column.
func (m MinuteOfDay) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan reads integer columns.
func (m *MinuteOfDay) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*m = MinuteOfDay(v)
	case int32:
		*m = MinuteOfDay(v)
	case int:
		*m = MinuteOfDay(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return fmt.Errorf("scan minute of day: %w", err)
		}
		*m = MinuteOfDay(n)
	default:
		return fmt.Errorf("unsupported type %T for MinuteOfDay", value)
	}
	return nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 MinuteOfDay) bool {
	return s1 < e2 && s2 < e1
}
