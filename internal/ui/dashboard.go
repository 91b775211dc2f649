package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/essp/internal/device"
)

// DefaultMaxEvents is the number of event lines the dashboard keeps.
const DefaultMaxEvents = 12

// DashboardConfig labels the dashboard.
type DashboardConfig struct {
	Device    string
	Port      string
	Interval  time.Duration
	MaxEvents int
}

type keyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Clear, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultKeys = keyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear events")),
}

type pollMsg device.PollResult

type resultsClosedMsg struct{}

type eventLine struct {
	at   time.Time
	text string
	bad  bool
}

// Dashboard is a Bubble Tea model showing live poll results.
type Dashboard struct {
	cfg     DashboardConfig
	results <-chan device.PollResult

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int

	last      *device.PollResult
	polls     int
	failures  int
	lastError string
	events    []eventLine
}

// NewDashboard creates a dashboard fed by results.
func NewDashboard(cfg DashboardConfig, results <-chan device.PollResult) Dashboard {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StepRunningStyle

	return Dashboard{
		cfg:     cfg,
		results: results,
		spinner: s,
		help:    help.New(),
		keys:    defaultKeys,
		width:   GetTerminalWidth(),
	}
}

func waitForResult(ch <-chan device.PollResult) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return resultsClosedMsg{}
		}
		return pollMsg(r)
	}
}

// Init implements tea.Model
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForResult(m.results))
}

// Update implements tea.Model
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.events = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		m = m.record(device.PollResult(msg))
		return m, waitForResult(m.results)

	case resultsClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m Dashboard) record(r device.PollResult) Dashboard {
	m.last = &r
	m.polls++
	if r.Err != nil {
		m.failures++
		m.lastError = device.GetShortErrorMessage(r.Err)
		m.events = append(m.events, eventLine{at: r.Time, text: m.lastError, bad: true})
	} else if r.Response != nil {
		m.lastError = ""
		for _, e := range r.Response.Events {
			m.events = append(m.events, eventLine{at: r.Time, text: e.String()})
		}
	}
	if n := len(m.events) - m.cfg.MaxEvents; n > 0 {
		m.events = append([]eventLine(nil), m.events[n:]...)
	}
	return m
}

// View implements tea.Model
func (m Dashboard) View() string {
	params := []Field{F("Device", m.cfg.Device)}
	if m.cfg.Port != "" {
		params = append(params, F("Port", m.cfg.Port))
	}
	if m.cfg.Interval > 0 {
		params = append(params, F("Interval", m.cfg.Interval))
	}

	var b strings.Builder
	b.WriteString(RenderHeader("SSP monitor", "essp watch", params, m.width))
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.eventLog())
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Dashboard) statusLine() string {
	if m.last == nil {
		return "  " + m.spinner.View() + " waiting for first poll"
	}

	badge := PlainBadgeStyle.Render("PLAIN")
	if m.last.Encrypted {
		badge = EncryptedBadgeStyle.Render("ENCRYPTED")
	}

	state := StepCompleteStyle.Render(SuccessMarker + " " + m.lastStatus())
	if m.lastError != "" {
		state = ErrorTitleStyle.Render(FailureMarker + " " + m.lastError)
	}

	counts := StepPendingStyle.Render(fmt.Sprintf("polls %d  failures %d  last %s",
		m.polls, m.failures, m.last.Time.Format("15:04:05")))
	return lipgloss.JoinHorizontal(lipgloss.Top, "  ", m.spinner.View(), " ", badge, "  ", state, "  ", counts)
}

func (m Dashboard) lastStatus() string {
	if m.last.Response == nil {
		return "no response"
	}
	return m.last.Response.Status.String()
}

func (m Dashboard) eventLog() string {
	if len(m.events) == 0 {
		return StepPendingStyle.Render("  no events")
	}
	lines := make([]string, 0, len(m.events))
	for _, e := range m.events {
		text := ResultValueStyle.Render(e.text)
		if e.bad {
			text = ErrorMessageStyle.Render(e.text)
		}
		lines = append(lines, "  "+EventTimeStyle.Render(e.at.Format("15:04:05.000"))+"  "+text)
	}
	return strings.Join(lines, "\n")
}

// RunDashboard runs the dashboard until the user quits, ctx is done, or
// results is closed.
func RunDashboard(ctx context.Context, cfg DashboardConfig, results <-chan device.PollResult) error {
	p := tea.NewProgram(NewDashboard(cfg, results), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
