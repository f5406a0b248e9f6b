package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitual/internal/session"
	"github.com/julianstephens/habitual/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *Context) error {
	loc, err := ctx.Location()
	if err != nil {
		return err
	}
	return ctx.runSession(func(runCtx context.Context, mgr *session.Manager) error {
		p := tea.NewProgram(tui.NewModel(mgr, loc, ctx.Clock.Now), tea.WithAltScreen(), tea.WithContext(runCtx))
		if _, err := p.Run(); err != nil && runCtx.Err() == nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})
}
