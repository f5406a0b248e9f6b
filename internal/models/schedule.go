package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
)

// Schedule marks the weekdays a habit is due, Monday first.
type Schedule [7]bool

// WeekdayNames are the Monday-first short names used in listings.
var WeekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var (
	weekdays = Schedule{true, true, true, true, true, false, false}
	weekends = Schedule{false, false, false, false, false, true, true}
)

// EveryDay returns a schedule with all seven days active.
func EveryDay() Schedule {
	return Schedule{true, true, true, true, true, true, true}
}

func (s Schedule) Count() int {
	n := 0
	for _, d := range s {
		if d {
			n++
		}
	}
	return n
}

func (s Schedule) String() string {
	switch {
	case s == EveryDay():
		return "daily"
	case s == weekdays:
		return "weekdays"
	case s == weekends:
		return "weekends"
	case s.Count() == 0:
		return "never"
	}
	var days []string
	for i, d := range s {
		if d {
			days = append(days, WeekdayNames[i])
		}
	}
	return strings.Join(days, ",")
}

// UnmarshalJSON rejects arrays that do not hold exactly seven entries.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var days []bool
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	if len(days) != len(s) {
		return fmt.Errorf("schedule must have %d days, got %d", len(s), len(days))
	}
	copy(s[:], days)
	return nil
}

// ParseSchedule accepts "daily", "weekdays", "weekends", or a comma-separated
// list of day names such as "mon,wed,fri".
func ParseSchedule(input string) (Schedule, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	switch input {
	case "":
		return Schedule{}, fmt.Errorf("schedule cannot be empty")
	case "daily", "everyday", "all":
		return EveryDay(), nil
	case "weekdays":
		return weekdays, nil
	case "weekends":
		return weekends, nil
	}

	var s Schedule
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := -1
		for i, name := range WeekdayNames {
			short := strings.ToLower(name)
			if part == short || strings.HasPrefix(part, short) && isFullDayName(part) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Schedule{}, fmt.Errorf("invalid weekday: %s", part)
		}
		s[idx] = true
	}
	return s, nil
}

func isFullDayName(s string) bool {
	switch s {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"tues", "thur", "thurs", "weds":
		return true
	}
	return false
}

// ReminderTime is a wall-clock time of day. The date is irrelevant.
type ReminderTime struct {
	Hour   int
	Minute int
}

// ParseReminderTime parses HH:MM.
func ParseReminderTime(s string) (ReminderTime, error) {
	var r ReminderTime
	if err := r.UnmarshalText([]byte(s)); err != nil {
		return ReminderTime{}, err
	}
	return r, nil
}

func (r ReminderTime) String() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// Minutes returns the minutes since midnight, used for ordering.
func (r ReminderTime) Minutes() int {
	return r.Hour*60 + r.Minute
}

func (r ReminderTime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ReminderTime) UnmarshalText(text []byte) error {
	t, err := parseClock(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid reminder time %q: expected HH:MM", string(text))
	}
	*r = t
	return nil
}

func parseClock(s string) (ReminderTime, error) {
	// time.Parse takes a one-digit hour for "15"; HH:MM is always five bytes.
	if len(s) != len(constants.TimeFormat) {
		return ReminderTime{}, fmt.Errorf("expected HH:MM")
	}
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return ReminderTime{}, err
	}
	return ReminderTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}
