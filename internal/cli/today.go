package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/quote"
	"github.com/julianstephens/habitual/internal/stats"
	"github.com/julianstephens/habitual/internal/utils"
)

type TodayCmd struct {
	NoQuote bool `help:"Hide the daily quote."`
}

// Run reconciles today's logs and prints the checklist.
func (c *TodayCmd) Run(ctx *Context) error {
	bg := context.Background()
	today, date, err := ctx.Today()
	if err != nil {
		return err
	}
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}
	rec, err := ctx.Reconciler(bg)
	if err != nil {
		return err
	}

	all, err := repo.List(bg)
	if err != nil {
		return err
	}
	due := utils.DueHabits(all, date)

	logs, err := rec.LogsOn(bg, today)
	if err != nil {
		return err
	}
	created, err := rec.Reconcile(bg, today, due, logs)
	if err != nil {
		return err
	}
	logs = append(logs, created...)

	ctx.printf("%s  %d%% complete\n\n", date.Format("Monday, Jan 2"), stats.CurrentRate(due, logs, today))
	if len(due) == 0 {
		ctx.println("Nothing due today.")
	}
	byHabit := models.LogsByHabit(logs, repo.Owner(), today)
	for _, h := range due {
		mark := "[ ]"
		if byHabit[h.ID].Completed {
			mark = "[x]"
		}
		ctx.printf("  %s %s  %-24s %s\n", mark, h.Reminder, h.Title, h.Category)
	}

	if !c.NoQuote {
		ctx.printf("\n\"%s\"\n", quote.ForDate(date))
	}
	return nil
}

type ToggleCmd struct {
	Habit string `arg:"" help:"Habit id or title."`
	Done  *bool  `help:"Set completion explicitly instead of flipping it." negatable:""`
}

func (c *ToggleCmd) Run(ctx *Context) error {
	bg := context.Background()
	today, _, err := ctx.Today()
	if err != nil {
		return err
	}
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}
	rec, err := ctx.Reconciler(bg)
	if err != nil {
		return err
	}
	h, err := resolveHabit(bg, repo, c.Habit)
	if err != nil {
		return err
	}

	if c.Done != nil {
		err = rec.SetCompleted(bg, today, h.ID, *c.Done)
	} else {
		err = rec.ToggleByQuery(bg, today, h.ID)
	}
	if err != nil {
		return err
	}

	logs, err := rec.LogsOn(bg, today)
	if err != nil {
		return err
	}
	state := "not done"
	if models.LogsByHabit(logs, repo.Owner(), today)[h.ID].Completed {
		state = "done"
	}
	ctx.printf("%s: %s\n", h.Title, state)
	return nil
}

// progressBar renders rate as a fixed-width bar.
func progressBar(rate, width int) string {
	filled := rate * width / 100
	return fmt.Sprintf("[%s%s]", strings.Repeat("#", filled), strings.Repeat(".", width-filled))
}
