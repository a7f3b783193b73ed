// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

// Package tui is the live watch view: a Bubble Tea program that renders the
// insights cache for one app and lets the coordinator's stale-while-
// revalidate loop keep it current.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/insightlab/insightctl/internal/api"
	"github.com/insightlab/insightctl/internal/insights"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f6be00"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// changedMsg signals that the coordinator's observable state changed.
type changedMsg struct{}

// tickMsg drives the periodic freshness check.
type tickMsg time.Time

// Model is the Bubble Tea model for `insightctl watch`. All state it renders
// lives in the coordinator; the model only keeps a display snapshot and the
// cursor.
type Model struct {
	svc     *insights.Service
	appID   uuid.UUID
	refresh time.Duration

	changes     <-chan struct{}
	unsubscribe func()

	groups  []api.InsightGroup
	cursor  int
	spinner spinner.Model
	width   int
	height  int
}

// New builds the watch model. refresh is how often the cache freshness is
// rechecked; the staleness window itself belongs to the coordinator.
func New(svc *insights.Service, appID uuid.UUID, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	changes, unsubscribe := svc.Subscribe()

	return Model{
		svc:         svc,
		appID:       appID,
		refresh:     refresh,
		changes:     changes,
		unsubscribe: unsubscribe,
		spinner:     sp,
	}
}

// Init primes the cache and starts the spinner, change listener and refresh
// ticker.
func (m Model) Init() tea.Cmd {
	m.svc.InsightGroups(context.Background(), m.appID)
	return tea.Batch(m.spinner.Tick, m.waitForChange(), m.tick())
}

// waitForChange blocks on the coordinator's change channel and turns each
// signal into a message.
func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		// Snapshot the cache for rendering. The read also moves focus back to
		// our app, keeping selection reconciliation pointed at it.
		m.groups = m.svc.InsightGroups(context.Background(), m.appID)
		m.clampCursor()
		return m, m.waitForChange()

	case tickMsg:
		// The read path does the staleness check and schedules a refetch when
		// the entry has aged out.
		m.groups = m.svc.InsightGroups(context.Background(), m.appID)
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key messages.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.unsubscribe()
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.groups)-1 {
			m.cursor++
			m.svc.Select(m.appID, m.groups[m.cursor].ID)
		}
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.svc.Select(m.appID, m.groups[m.cursor].ID)
		}
		return m, nil

	case "r":
		m.svc.FetchInsightGroups(context.Background(), m.appID, nil)
		return m, nil
	}

	return m, nil
}

// clampCursor keeps the cursor inside the current group list and aligned
// with the coordinator's selection.
func (m *Model) clampCursor() {
	if len(m.groups) == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= len(m.groups) {
		m.cursor = len(m.groups) - 1
	}

	if selected, ok := m.svc.SelectedGroupID(); ok {
		for i, g := range m.groups {
			if g.ID == selected {
				m.cursor = i
				return
			}
		}
	}
}

// View renders the group list with per-group insight counts and a status
// line.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("insights " + m.appID.String()))
	b.WriteString("\n")

	status := "idle"
	if m.svc.IsLoading(m.appID) {
		status = m.spinner.View() + " loading"
	} else if loaded, ok := m.svc.LastLoad(m.appID); ok {
		status = "loaded " + humanize.Time(loaded)
	}
	b.WriteString(dimStyle.Render(status))
	b.WriteString("\n\n")

	if len(m.groups) == 0 {
		b.WriteString(dimStyle.Render("no insight groups"))
		b.WriteString("\n")
	}

	for i, g := range m.groups {
		line := "  "
		if i == m.cursor {
			line = "> "
		}
		line += g.Title
		line += dimStyle.Render("  " + humanize.Comma(int64(len(g.Insights))) + " insights")

		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("j/k move, r refresh, q quit"))
	return b.String()
}
