package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/quote"
	"github.com/julianstephens/habitual/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch {
	case !m.received:
		content = docStyle.Render("Loading...")
	case !m.view.SignedIn():
		content = docStyle.Render("Not signed in.\nRun 'habitual login <user>' in another terminal.")
	default:
		switch m.state {
		case constants.StateToday:
			content = m.viewToday()
		case constants.StateHabits:
			content = docStyle.Render(m.habitsModel.View())
		case constants.StateProgress:
			content = docStyle.Render(m.progressModel.View())
		case constants.StateAddHabit, constants.StateEditHabit:
			content = docStyle.Render(m.form.View())
		case constants.StateConfirmDelete:
			content = m.viewConfirmDelete()
		}
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var out []string
	for i, title := range tabTitles {
		if m.state == tabs[i] {
			out = append(out, activeTabStyle.Render(title))
		} else {
			out = append(out, inactiveTabStyle.Render(title))
		}
	}
	if m.view.SignedIn() {
		out = append(out, inactiveTabStyle.Render(m.view.Owner))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func (m Model) viewToday() string {
	header := m.view.Date
	q := ""
	if date, err := utils.ParseDateInLocation(m.view.Date, m.loc); err == nil {
		header = date.Format("Monday, January 2")
		q = quoteStyle.Render(fmt.Sprintf("%q", quote.ForDate(date)))
	}

	return docStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(header)+"  "+rateStyle.Render(fmt.Sprintf("%d%%", m.view.Rate)),
		q,
		"",
		m.todayModel.View(),
	))
}

func (m Model) viewStatus() string {
	if line := m.errorLine(); line != "" {
		return dangerStyle.Render(line)
	}
	return statusStyle.Render(m.status)
}

func (m Model) viewConfirmDelete() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render(fmt.Sprintf("Delete %q and its completion history?", m.habitToDelete.title)),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
