package cli

import (
	"context"

	"github.com/julianstephens/habitual/internal/stats"
)

type ProgressCmd struct {
	Period string `short:"p" help:"Heat map period (week or month)." default:"week" enum:"week,month"`
	Offset int    `short:"o" help:"Periods back from the current one." default:"0"`
}

// Run prints one line per day with its historical completion rate.
func (c *ProgressCmd) Run(ctx *Context) error {
	bg := context.Background()
	period, err := stats.ParsePeriod(c.Period)
	if err != nil {
		return err
	}
	_, date, err := ctx.Today()
	if err != nil {
		return err
	}
	rec, err := ctx.Reconciler(bg)
	if err != nil {
		return err
	}
	history, err := rec.History(bg)
	if err != nil {
		return err
	}

	anchor := stats.Shift(period, date, -c.Offset)
	dates := stats.PeriodDates(period, anchor)
	cells := stats.HeatMap(history, dates)

	ctx.println(stats.Label(period, anchor))
	ctx.println()
	for i, cell := range cells {
		if cell.Logs == 0 {
			ctx.printf("  %s %s  %s\n", dates[i].Format("Mon"), cell.Date, "-")
			continue
		}
		ctx.printf("  %s %s  %s %3d%%\n", dates[i].Format("Mon"), cell.Date, progressBar(cell.Rate, 20), cell.Rate)
	}
	return nil
}
