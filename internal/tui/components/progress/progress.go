package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/stats"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	dayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(4)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	// shades from no completions to all of them
	shades = []lipgloss.Color{"22", "28", "34", "40", "46"}
)

type KeyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Period key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Prev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next"),
		),
		Period: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "week/month"),
		),
	}
}

// Model renders the completion heat map for a week or a month.
type Model struct {
	viewport viewport.Model
	keys     KeyMap
	period   stats.Period
	today    time.Time
	anchor   time.Time
	history  []models.CompletionLog
	loaded   bool
}

func New(width, height int) Model {
	return Model{
		viewport: viewport.New(width, height),
		keys:     DefaultKeyMap(),
		period:   stats.Week,
	}
}

func (m Model) Keys() KeyMap { return m.keys }

// SetToday moves the anchor back to the current period when the day changes.
func (m *Model) SetToday(today time.Time) {
	if today.Equal(m.today) {
		return
	}
	m.today = today
	m.anchor = today
	m.Render()
}

// Reset drops the history, e.g. when the owner changes.
func (m *Model) Reset() {
	m.history = nil
	m.loaded = false
	m.Render()
}

func (m *Model) SetHistory(logs []models.CompletionLog) {
	m.history = logs
	m.loaded = true
	m.Render()
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Prev):
			m.anchor = stats.Shift(m.period, m.anchor, -1)
			m.Render()
			return m, nil
		case key.Matches(msg, m.keys.Next):
			// never page past the period holding today
			next := stats.Shift(m.period, m.anchor, 1)
			if !stats.PeriodDates(m.period, next)[0].After(m.today) {
				m.anchor = next
				m.Render()
			}
			return m, nil
		case key.Matches(msg, m.keys.Period):
			if m.period == stats.Week {
				m.period = stats.Month
			} else {
				m.period = stats.Week
			}
			m.anchor = m.today
			m.Render()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.loaded {
		return "Loading history..."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func shade(rate int) lipgloss.Style {
	i := int(stats.Intensity(rate) * float64(len(shades)-1))
	return lipgloss.NewStyle().Foreground(shades[i])
}

func (m *Model) Render() {
	if m.today.IsZero() {
		m.viewport.SetContent("")
		return
	}

	dates := stats.PeriodDates(m.period, m.anchor)
	cells := stats.HeatMap(m.history, dates)

	var b strings.Builder
	b.WriteString(labelStyle.Render(stats.Label(m.period, m.anchor)))
	b.WriteString("\n\n")
	for i, cell := range cells {
		day := dayStyle.Render(dates[i].Format("Mon"))
		if cell.Logs == 0 || dates[i].After(m.today) {
			fmt.Fprintf(&b, "%s %s %s\n", day, cell.Date, emptyStyle.Render("·"))
			continue
		}
		bar := strings.Repeat("■", max(1, cell.Rate/10))
		fmt.Fprintf(&b, "%s %s %s %3d%%\n", day, cell.Date, shade(cell.Rate).Render(bar), cell.Rate)
	}
	m.viewport.SetContent(b.String())
}
