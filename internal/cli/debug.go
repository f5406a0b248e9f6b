package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/utils"
)

type DebugCmd struct {
	DBPath    *DebugDBPathCmd    `cmd:"" help:"Show database path."`
	DumpHabit *DebugDumpHabitCmd `cmd:"" help:"Dump a habit as JSON."`
	DumpLogs  *DebugDumpLogsCmd  `cmd:"" help:"Dump the completion logs of one day as JSON."`
}

func (c *Context) printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.println(string(jsonBytes))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *Context) error {
	output := map[string]string{
		"driver": ctx.Config.Storage.Driver,
		"config": ctx.ConfigPath,
	}
	if ctx.Config.Storage.Driver == constants.DriverSQLite {
		output["path"] = ctx.Config.Storage.Path
	}
	return ctx.printJSON(output)
}

type DebugDumpHabitCmd struct {
	Habit string `arg:"" help:"Id or title of the habit to dump."`
}

func (cmd *DebugDumpHabitCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}
	h, err := resolveHabit(bg, repo, cmd.Habit)
	if err != nil {
		return err
	}
	// the stored form leaves the id out
	return ctx.printJSON(struct {
		ID       string `json:"id"`
		Schedule string `json:"scheduleText"`
		Habit    any    `json:"habit"`
	}{h.ID, h.Schedule.String(), h})
}

type DebugDumpLogsCmd struct {
	Date string `arg:"" help:"Date to dump (YYYY-MM-DD or 'today')." default:"today"`
}

type logDump struct {
	ID        string `json:"id"`
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

func (cmd *DebugDumpLogsCmd) Run(ctx *Context) error {
	bg := context.Background()
	date := cmd.Date
	if date == "today" {
		today, _, err := ctx.Today()
		if err != nil {
			return err
		}
		date = today
	}
	if !utils.ValidateDate(date) {
		return fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD or 'today')", date)
	}

	rec, err := ctx.Reconciler(bg)
	if err != nil {
		return err
	}
	logs, err := rec.LogsOn(bg, date)
	if err != nil {
		return err
	}
	out := make([]logDump, 0, len(logs))
	for _, l := range logs {
		out = append(out, logDump{ID: l.ID, HabitID: l.HabitID, Date: l.Date, Completed: l.Completed})
	}
	return ctx.printJSON(out)
}
