package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds every ClockTime value.
const MinutesPerDay = 24 * 60

// ClockTime is a wall-clock time expressed as minutes since midnight.
// It travels as "HH:MM" in JSON and SQL.
type ClockTime int

// ParseClock parses "HH:MM" (24:00 is accepted as end of day).
func ParseClock(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if hours < 0 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	value := hours*60 + minutes
	if value > MinutesPerDay {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return ClockTime(value), nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(raw string) ClockTime {
	value, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return value
}

// Minutes returns the raw minute count.
func (c ClockTime) Minutes() int {
	return int(c)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON implements json.Marshaler.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("clock time must be a HH:MM string: %w", err)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner. Postgres TIME columns arrive as "HH:MM:SS".
func (c *ClockTime) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("unsupported clock time source %T", src)
	}
	if len(raw) == len("15:04:05") {
		raw = raw[:5]
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var dayIndexMap = map[int]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

// Days lists day indexes in week order.
var Days = []int{1, 2, 3, 4, 5, 6, 7}

// DayName maps 1..7 to MONDAY..SUNDAY.
func DayName(day int) string {
	if name, ok := dayIndexMap[day]; ok {
		return name
	}
	return fmt.Sprintf("DAY_%d", day)
}

// DayIndex maps a day name to 1..7, returning 0 for unknown names.
func DayIndex(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}

// ValidDay reports whether day is within 1..7.
func ValidDay(day int) bool {
	return day >= 1 && day <= 7
}
