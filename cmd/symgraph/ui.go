// # cmd/symgraph/ui.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"symgraph/internal/core/app"
	"symgraph/internal/realtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	app        *app.App
	list       list.Model
	stats      app.Stats
	rt         realtime.Stats
	lastUpdate time.Time
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case tickMsg:
		m.stats = m.app.Stats()
		m.rt = m.app.Realtime.Stats()
		m.lastUpdate = time.Now()

		items := []list.Item{}
		for kind, count := range m.rt.QueriesByType {
			items = append(items, item{
				title: fmt.Sprintf("%s queries", kind),
				desc:  fmt.Sprintf("%d active", count),
			})
		}
		m.list.SetItems(items)
		return m, tick()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d nodes | %d edges",
		m.lastUpdate.Format("15:04:05"), m.stats.Nodes, m.stats.Edges))

	var summary string
	if m.rt.ActiveConnections == 0 {
		summary = statusStyle.Render("no clients connected")
	} else {
		summary = successStyle.Render(fmt.Sprintf("%d clients | %d queries | %d subscriptions",
			m.rt.ActiveConnections, m.rt.ActiveQueries, m.rt.ActiveSubscriptions))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Symbol Graph Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel(a *app.App) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Live Queries"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		app:        a,
		list:       l,
		lastUpdate: time.Now(),
	}
}

func runUI(ctx context.Context, a *app.App) error {
	p := tea.NewProgram(initialModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
