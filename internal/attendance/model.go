package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnknownEmployee is recorded as the name and department of an unmatched plate
const UnknownEmployee = "Unknown"

// TimeOfDay is a wall-clock time without a date
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants; it panics on invalid input
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether the hour and minute are in range
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes returns the minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// String formats the time as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Kitchen formats the time on a 12-hour clock, e.g. "09:00 AM"
func (t TimeOfDay) Kitchen() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("03:04 PM")
}

// MarshalText implements encoding.TextMarshaler
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Employee is a roster entry keyed by license plate
type Employee struct {
	ID              int64     `json:"id" yaml:"-"`
	Name            string    `json:"name" yaml:"name" validate:"required"`
	LicensePlate    string    `json:"licensePlate" yaml:"licensePlate" validate:"required"`
	Department      string    `json:"department" yaml:"department"`
	ExpectedArrival TimeOfDay `json:"expectedArrival" yaml:"expectedArrival"`
}

// EntryStatus is the classification of an arrival
type EntryStatus string

const (
	StatusOnTime  EntryStatus = "ON_TIME"
	StatusLate    EntryStatus = "LATE"
	StatusInvalid EntryStatus = "INVALID"
)

// ParseEntryStatus accepts a stored status name or its display label
func ParseEntryStatus(s string) (EntryStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusOnTime), "ON TIME":
		return StatusOnTime, nil
	case string(StatusLate):
		return StatusLate, nil
	case string(StatusInvalid):
		return StatusInvalid, nil
	default:
		return "", fmt.Errorf("unknown entry status %q", s)
	}
}

// Label returns the human readable status used in messages and annotations
func (s EntryStatus) Label() string {
	switch s {
	case StatusOnTime:
		return "ON TIME"
	default:
		return string(s)
	}
}

// EntryLog is one recorded arrival
type EntryLog struct {
	ID           string      `json:"id"`
	LicensePlate string      `json:"licensePlate"`
	Timestamp    time.Time   `json:"timestamp"`
	EmployeeName string      `json:"employeeName"`
	Department   string      `json:"department"`
	Status       EntryStatus `json:"status"`
	MinutesLate  *int        `json:"minutesLate,omitempty"`
}

// Summary aggregates entries by status
type Summary struct {
	Since   time.Time `json:"since"`
	Total   int       `json:"total"`
	OnTime  int       `json:"onTime"`
	Late    int       `json:"late"`
	Invalid int       `json:"invalid"`
}

// Summarize counts entries per status
func Summarize(since time.Time, entries []EntryLog) Summary {
	summary := Summary{Since: since, Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusOnTime:
			summary.OnTime++
		case StatusLate:
			summary.Late++
		case StatusInvalid:
			summary.Invalid++
		}
	}
	return summary
}
