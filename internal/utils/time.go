package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// NowInTimezone returns the current time in the specified timezone.
func NowInTimezone(timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return time.Now().In(loc), nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// DateKey renders the local calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// ParseDateInLocation parses a date string (YYYY-MM-DD) as midnight in loc.
func ParseDateInLocation(dateStr string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// ValidateDate checks if the string is a YYYY-MM-DD calendar date.
func ValidateDate(dateStr string) bool {
	_, err := time.Parse(constants.DateFormat, dateStr)
	return err == nil
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first instant of the local day after t. Calendar
// arithmetic keeps this correct across DST transitions, where a day is not
// 24 hours long.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	start := StartOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(dateStr string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}
