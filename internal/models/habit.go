package models

import (
	"strings"
	"time"
)

// Category groups habits for display. Unknown values collapse to CategoryOther.
type Category string

const (
	CategoryFitness      Category = "Fitness"
	CategoryMindfulness  Category = "Mindfulness"
	CategoryNutrition    Category = "Nutrition"
	CategoryProductivity Category = "Productivity"
	CategoryLearning     Category = "Learning"
	CategoryOther        Category = "Other"
)

// Categories lists every selectable category in display order.
var Categories = []Category{
	CategoryFitness,
	CategoryMindfulness,
	CategoryNutrition,
	CategoryProductivity,
	CategoryLearning,
	CategoryOther,
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	return CategoryOther
}

// Habit represents a recurring practice to track
type Habit struct {
	ID        string       `json:"-"`
	Owner     string       `json:"owner"`
	Title     string       `json:"title"`
	Category  Category     `json:"category"`
	Schedule  Schedule     `json:"schedule"`
	Reminder  ReminderTime `json:"reminder"`
	CreatedAt time.Time    `json:"createdAt"`
}

// HabitInput is the ownerless data supplied when creating a habit.
// A nil Schedule means every day.
type HabitInput struct {
	Title    string
	Category Category
	Schedule *Schedule
	Reminder ReminderTime
}

// HabitPatch carries the fields an edit changes. Nil fields are left alone.
type HabitPatch struct {
	Title    *string
	Category *Category
	Schedule *Schedule
	Reminder *ReminderTime
}

func (p HabitPatch) IsEmpty() bool {
	return p.Title == nil && p.Category == nil && p.Schedule == nil && p.Reminder == nil
}
