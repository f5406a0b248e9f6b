package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
)

const commandTimeout = 10 * time.Second

type viewMsg session.View

// viewsClosedMsg means the session stopped publishing.
type viewsClosedMsg struct{}

type historyMsg struct {
	owner string
	logs  []models.CompletionLog
	err   error
}

// resultMsg reports the outcome of a write. status is shown on success.
type resultMsg struct {
	status string
	err    error
}

func waitForView(ch <-chan session.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return viewsClosedMsg{}
		}
		return viewMsg(v)
	}
}

func toggleHabit(mgr *session.Manager, habitID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return resultMsg{err: mgr.Toggle(ctx, habitID)}
	}
}

func loadHistory(t *session.Tracker) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		logs, err := t.Reconciler().History(ctx)
		return historyMsg{owner: t.Owner(), logs: logs, err: err}
	}
}

func addHabit(t *session.Tracker, in models.HabitInput) tea.Cmd {
	if t == nil {
		return noOwner
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		h, err := t.Habits().Add(ctx, in)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: "Added " + h.Title}
	}
}

func editHabit(t *session.Tracker, habitID string, patch models.HabitPatch) tea.Cmd {
	if t == nil {
		return noOwner
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		h, err := t.Habits().Update(ctx, habitID, patch)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: "Updated " + h.Title}
	}
}

func deleteHabit(t *session.Tracker, habitID, title string) tea.Cmd {
	if t == nil {
		return noOwner
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := t.Habits().Remove(ctx, habitID)
		if err != nil && !apperrors.IsWarning(err) {
			return resultMsg{err: err}
		}
		return resultMsg{status: "Deleted " + title, err: err}
	}
}

func noOwner() tea.Msg {
	return resultMsg{err: apperrors.ErrNoOwner}
}
