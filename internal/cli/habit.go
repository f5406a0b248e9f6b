package cli

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit a habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit and its completion history."`
}

type HabitAddCmd struct {
	Title    string `arg:"" help:"Habit title."`
	Category string `short:"c" help:"Category (Fitness, Mindfulness, Nutrition, Productivity, Learning, Other)." default:"Other"`
	Schedule string `short:"s" help:"Days the habit is due: daily, weekdays, weekends, or e.g. mon,wed,fri." default:"daily"`
	Reminder string `short:"r" help:"Reminder time (HH:MM). Defaults to now."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}

	schedule, err := models.ParseSchedule(c.Schedule)
	if err != nil {
		return apperrors.NewValidationError("schedule", err.Error())
	}
	reminder, err := ctx.reminderOrNow(c.Reminder)
	if err != nil {
		return err
	}

	h, err := repo.Add(bg, models.HabitInput{
		Title:    c.Title,
		Category: models.ParseCategory(c.Category),
		Schedule: &schedule,
		Reminder: reminder,
	})
	if err != nil {
		return err
	}

	ctx.printf("Added habit: %s (ID: %s)\n", h.Title, h.ID)
	return nil
}

func (c *Context) reminderOrNow(s string) (models.ReminderTime, error) {
	if strings.TrimSpace(s) == "" {
		loc, err := c.Location()
		if err != nil {
			return models.ReminderTime{}, err
		}
		now := c.Clock.Now().In(loc)
		return models.ReminderTime{Hour: now.Hour(), Minute: now.Minute()}, nil
	}
	r, err := models.ParseReminderTime(s)
	if err != nil {
		return models.ReminderTime{}, apperrors.NewValidationError("reminder", err.Error())
	}
	return r, nil
}

type HabitListCmd struct {
	Category string `short:"c" help:"Only show this category."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}

	all, err := repo.List(bg)
	if err != nil {
		return err
	}

	var filter models.Category
	if c.Category != "" {
		filter = models.ParseCategory(c.Category)
	}

	shown := 0
	for _, h := range all {
		if filter != "" && h.Category != filter {
			continue
		}
		if shown == 0 {
			ctx.println("Habits:")
		}
		shown++
		ctx.printf("  %s  %-24s %-12s %-14s %s\n", h.Reminder, h.Title, h.Category, h.Schedule, h.ID)
	}
	if shown == 0 {
		ctx.println("No habits found.")
	}
	return nil
}

type HabitEditCmd struct {
	Habit    string  `arg:"" help:"Habit id or title."`
	Title    *string `help:"New title."`
	Category *string `short:"c" help:"New category."`
	Schedule *string `short:"s" help:"New schedule."`
	Reminder *string `short:"r" help:"New reminder time (HH:MM)."`
}

func (c *HabitEditCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}
	h, err := resolveHabit(bg, repo, c.Habit)
	if err != nil {
		return err
	}

	var patch models.HabitPatch
	patch.Title = c.Title
	if c.Category != nil {
		cat := models.ParseCategory(*c.Category)
		patch.Category = &cat
	}
	if c.Schedule != nil {
		s, err := models.ParseSchedule(*c.Schedule)
		if err != nil {
			return apperrors.NewValidationError("schedule", err.Error())
		}
		patch.Schedule = &s
	}
	if c.Reminder != nil {
		r, err := models.ParseReminderTime(*c.Reminder)
		if err != nil {
			return apperrors.NewValidationError("reminder", err.Error())
		}
		patch.Reminder = &r
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to change: pass --title, --category, --schedule or --reminder")
	}

	updated, err := repo.Update(bg, h.ID, patch)
	if err != nil {
		return err
	}
	ctx.printf("Updated habit: %s (%s, %s at %s)\n", updated.Title, updated.Category, updated.Schedule, updated.Reminder)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *HabitDeleteCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}
	h, err := resolveHabit(bg, repo, c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.confirm(fmt.Sprintf("Delete %q and all of its history?", h.Title))
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Delete cancelled.")
			return nil
		}
	}

	err = repo.Remove(bg, h.ID)
	if apperrors.IsWarning(err) {
		ctx.printf("Deleted habit: %s\n", h.Title)
		ctx.println(apperrors.Format(err))
		return nil
	}
	if err != nil {
		return err
	}
	ctx.printf("Deleted habit: %s\n", h.Title)
	return nil
}
