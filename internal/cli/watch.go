package cli

import (
	"context"
	"strings"

	"github.com/julianstephens/habitual/internal/session"
)

// WatchCmd prints today's checklist every time it changes.
type WatchCmd struct{}

func (c *WatchCmd) Run(ctx *Context) error {
	return ctx.runSession(func(runCtx context.Context, mgr *session.Manager) error {
		for {
			select {
			case <-runCtx.Done():
				return nil
			case v, ok := <-mgr.Views():
				if !ok {
					return nil
				}
				ctx.printView(v)
			}
		}
	})
}

func (c *Context) printView(v session.View) {
	if !v.SignedIn() {
		c.println("-- not signed in --")
		return
	}
	var b strings.Builder
	for _, h := range v.Habits {
		mark := "[ ]"
		if h.Completed {
			mark = "[x]"
		}
		b.WriteString("  " + mark + " " + h.Habit.Title + "\n")
	}
	c.printf("-- %s  %s  %d%% --\n%s", v.Owner, v.Date, v.Rate, b.String())
}
