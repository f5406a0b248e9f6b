package utils

import (
	"sort"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

// WeekdayIndex maps a date to its Monday-first ordinal: Monday is 0,
// Sunday is 6.
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// IsDue reports whether schedule marks the weekday of date as active. date
// should already be in the user's location.
func IsDue(schedule models.Schedule, date time.Time) bool {
	return schedule[WeekdayIndex(date)]
}

// DueHabits filters habits down to those due on date, ordered by reminder
// time and then title.
func DueHabits(habits []models.Habit, date time.Time) []models.Habit {
	due := make([]models.Habit, 0, len(habits))
	for _, h := range habits {
		if IsDue(h.Schedule, date) {
			due = append(due, h)
		}
	}
	SortByReminder(due)
	return due
}

// SortByReminder orders habits by reminder time, then title, then id.
func SortByReminder(habits []models.Habit) {
	sort.SliceStable(habits, func(i, j int) bool {
		a, b := habits[i], habits[j]
		if a.Reminder.Minutes() != b.Reminder.Minutes() {
			return a.Reminder.Minutes() < b.Reminder.Minutes()
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}
