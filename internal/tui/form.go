package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

// NewHabitForm creates a new form for adding habits
func NewHabitForm(fm *HabitFormModel) *huh.Form {
	options := make([]huh.Option[string], len(models.Categories))
	for i, c := range models.Categories {
		options[i] = huh.NewOption(string(c), string(c))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("habit title cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Category").
				Options(options...).
				Value(&fm.Category),
			huh.NewInput().
				Title("Schedule").
				Description("daily, weekdays, weekends, or e.g. mon,wed,fri").
				Value(&fm.Schedule).
				Validate(func(s string) error {
					_, err := models.ParseSchedule(s)
					return err
				}),
			huh.NewInput().
				Title("Reminder (HH:MM)").
				Value(&fm.Reminder).
				Validate(func(s string) error {
					_, err := models.ParseReminderTime(s)
					return err
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

func newHabitFormModel(now time.Time) *HabitFormModel {
	return &HabitFormModel{
		Category: string(models.CategoryOther),
		Schedule: "daily",
		Reminder: now.Format(constants.TimeFormat),
	}
}

// habitFormModelFrom prefills the form for editing h.
func habitFormModelFrom(h models.Habit) *HabitFormModel {
	return &HabitFormModel{
		Title:    h.Title,
		Category: string(models.ParseCategory(string(h.Category))),
		Schedule: h.Schedule.String(),
		Reminder: h.Reminder.String(),
	}
}

// Input converts the completed form. The validators already ran.
func (fm *HabitFormModel) Input() (models.HabitInput, error) {
	schedule, err := models.ParseSchedule(fm.Schedule)
	if err != nil {
		return models.HabitInput{}, err
	}
	reminder, err := models.ParseReminderTime(fm.Reminder)
	if err != nil {
		return models.HabitInput{}, err
	}
	return models.HabitInput{
		Title:    strings.TrimSpace(fm.Title),
		Category: models.ParseCategory(fm.Category),
		Schedule: &schedule,
		Reminder: reminder,
	}, nil
}

// Patch converts the completed form into an edit of every field.
func (fm *HabitFormModel) Patch() (models.HabitPatch, error) {
	in, err := fm.Input()
	if err != nil {
		return models.HabitPatch{}, err
	}
	return models.HabitPatch{
		Title:    &in.Title,
		Category: &in.Category,
		Schedule: in.Schedule,
		Reminder: &in.Reminder,
	}, nil
}
