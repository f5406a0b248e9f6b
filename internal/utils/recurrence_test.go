package utils

import (
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

func TestWeekdayIndex(t *testing.T) {
	// 2026-10-12 is a Monday.
	monday := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		if got := WeekdayIndex(d); got != i {
			t.Errorf("WeekdayIndex(%s) = %d, want %d", d.Weekday(), got, i)
		}
	}
}

// Every schedule against every weekday, twice over.
func TestIsDueMatchesMondayFirstOrdinal(t *testing.T) {
	start := time.Date(2026, 10, 11, 12, 0, 0, 0, time.UTC) // Sunday
	for mask := 0; mask < 1<<7; mask++ {
		var s models.Schedule
		for i := range s {
			s[i] = mask&(1<<i) != 0
		}
		for offset := 0; offset < 14; offset++ {
			d := start.AddDate(0, 0, offset)
			want := s[(int(d.Weekday())+6)%7]
			if got := IsDue(s, d); got != want {
				t.Fatalf("IsDue(%v, %s) = %v, want %v", s, d.Format("Mon 2006-01-02"), got, want)
			}
		}
	}
}

func TestIsDueWeekdaySchedule(t *testing.T) {
	weekdays := models.Schedule{true, true, true, true, true, false, false}
	wednesday := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	if !IsDue(weekdays, wednesday) {
		t.Error("Mon-Fri habit should be due on Wednesday")
	}
	if IsDue(weekdays, saturday) {
		t.Error("Mon-Fri habit should not be due on Saturday")
	}
}

func TestIsDueUsesLocalWeekday(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	// Tuesday 20:00 UTC is already Wednesday in Auckland.
	instant := time.Date(2026, 10, 13, 20, 0, 0, 0, time.UTC)
	onlyWednesday := models.Schedule{false, false, true, false, false, false, false}

	if IsDue(onlyWednesday, instant) {
		t.Error("UTC view should see Tuesday")
	}
	if !IsDue(onlyWednesday, instant.In(loc)) {
		t.Error("local view should see Wednesday")
	}
}

func TestDueHabitsSortsByReminder(t *testing.T) {
	habits := []models.Habit{
		{ID: "c", Title: "Journal", Schedule: models.EveryDay(), Reminder: models.ReminderTime{Hour: 21}},
		{ID: "a", Title: "Run", Schedule: models.Schedule{false, false, false, false, false, true, true}, Reminder: models.ReminderTime{Hour: 6}},
		{ID: "b", Title: "Meditate", Schedule: models.EveryDay(), Reminder: models.ReminderTime{Hour: 7, Minute: 15}},
		{ID: "d", Title: "Floss", Schedule: models.EveryDay(), Reminder: models.ReminderTime{Hour: 21}},
	}

	wednesday := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	due := DueHabits(habits, wednesday)

	want := []string{"b", "d", "c"}
	if len(due) != len(want) {
		t.Fatalf("len(due) = %d, want %d", len(due), len(want))
	}
	for i, id := range want {
		if due[i].ID != id {
			t.Errorf("due[%d] = %s, want %s", i, due[i].ID, id)
		}
	}
}
