package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/ipc"
)

// Messages sent to the server view by the running server
type (
	ClientConnectedMsg    struct{ Client ipc.ClientInfo }
	ClientDisconnectedMsg struct{ Client ipc.ClientInfo }
	ClientsMsg            struct{ Clients []ipc.ClientInfo } // periodic refresh of the request counters
	MonitorsChangedMsg    struct{ Monitors []display.Monitor }
	LogMsg                struct{ Line string }

	// ServerStoppedMsg ends the view once the server has shut down
	ServerStoppedMsg struct{ Err error }
)

// ServerInfo is the static part of the server view header
type ServerInfo struct {
	Version string
	Socket  string
	Control string
	Card    string
}

const maxLogLines = 8

// ServerModel is the inline view shown while `xkms server` runs in a
// terminal
type ServerModel struct {
	info     ServerInfo
	spinner  spinner.Model
	monitors table.Model
	clients  table.Model

	connected []ipc.ClientInfo
	logs      []string
	stopped   bool
	err       error
}

// NewServerModel creates the server view with the initial monitor layout
func NewServerModel(info ServerInfo, monitors []display.Monitor) *ServerModel {
	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	m := &ServerModel{
		info:    info,
		spinner: s,
		monitors: newListTable([]table.Column{
			{Title: "Output", Width: 12},
			{Title: "Mode", Width: 16},
			{Title: "Position", Width: 11},
			{Title: "State", Width: 9},
		}, false),
		clients: newListTable([]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Address", Width: 22},
			{Title: "Base", Width: 10},
			{Title: "Requests", Width: 9},
		}, true),
	}
	m.setMonitors(monitors)
	return m
}

func newListTable(columns []table.Column, focused bool) table.Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorSubtle).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(ColorPrimary).Bold(false)

	return table.New(
		table.WithColumns(columns),
		table.WithHeight(5),
		table.WithFocused(focused),
		table.WithStyles(styles),
	)
}

func (m *ServerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *ServerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.clients, cmd = m.clients.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ClientConnectedMsg:
		m.connected = append(m.connected, msg.Client)
		sort.Slice(m.connected, func(i, j int) bool { return m.connected[i].ID < m.connected[j].ID })
		m.setClients()

	case ClientDisconnectedMsg:
		for i, c := range m.connected {
			if c.ID == msg.Client.ID {
				m.connected = append(m.connected[:i], m.connected[i+1:]...)
				break
			}
		}
		m.setClients()

	case ClientsMsg:
		m.connected = append(m.connected[:0], msg.Clients...)
		m.setClients()

	case MonitorsChangedMsg:
		m.setMonitors(msg.Monitors)

	case LogMsg:
		m.logs = append(m.logs, msg.Line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}

	case ServerStoppedMsg:
		m.stopped = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *ServerModel) setMonitors(monitors []display.Monitor) {
	rows := make([]table.Row, 0, len(monitors))
	for _, mon := range monitors {
		name := mon.Name
		if mon.Primary {
			name += " *"
		}
		state := "idle"
		if mon.Bound {
			state = "bound"
		}
		rows = append(rows, table.Row{
			name,
			fmt.Sprintf("%dx%d@%d", mon.Width, mon.Height, mon.RefreshHz),
			fmt.Sprintf("+%d+%d", mon.X, mon.Y),
			state,
		})
	}
	m.monitors.SetRows(rows)
}

func (m *ServerModel) setClients() {
	rows := make([]table.Row, 0, len(m.connected))
	for _, c := range m.connected {
		rows = append(rows, table.Row{
			fmt.Sprint(c.ID),
			c.Address,
			fmt.Sprintf("%#x", c.ResourceBase),
			fmt.Sprint(c.Requests),
		})
	}
	m.clients.SetRows(rows)
}

// Clients returns the clients currently shown
func (m *ServerModel) Clients() []ipc.ClientInfo {
	return append([]ipc.ClientInfo(nil), m.connected...)
}

// Err returns the error the server stopped with, if any
func (m *ServerModel) Err() error {
	return m.err
}

func (m *ServerModel) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render("XKMS " + m.info.Version)
	status := lipgloss.NewStyle().Foreground(ColorSuccess).Render(m.spinner.View() + " Serving")
	if m.stopped {
		status = lipgloss.NewStyle().Foreground(ColorSubtle).Render(IconIdle + " Stopped")
	}
	subtle := lipgloss.NewStyle().Foreground(ColorSubtle)
	fmt.Fprintf(&b, "%s  %s  %s\n", title, status, subtle.Render(m.info.Socket))
	fmt.Fprintf(&b, "%s\n\n", subtle.Render(fmt.Sprintf("card %s  control %s", m.info.Card, m.info.Control)))

	section := lipgloss.NewStyle().Bold(true)
	b.WriteString(section.Render("Monitors") + "\n")
	if len(m.monitors.Rows()) == 0 {
		b.WriteString(subtle.Render("No monitors") + "\n\n")
	} else {
		b.WriteString(m.monitors.View() + "\n\n")
	}

	b.WriteString(section.Render(fmt.Sprintf("Clients (%d)", len(m.connected))) + "\n")
	if len(m.connected) == 0 {
		b.WriteString(subtle.Render("No clients connected") + "\n\n")
	} else {
		b.WriteString(m.clients.View() + "\n\n")
	}

	for _, line := range m.logs {
		b.WriteString(subtle.Render(line) + "\n")
	}
	b.WriteString(subtle.Render("q quit • ↑/↓ scroll clients"))
	return b.String()
}

// LogWriter forwards each written line to the server view. It is meant for
// logger.SetOutput while the view owns the terminal.
type LogWriter struct {
	Send func(tea.Msg)
}

func (w LogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.Send(LogMsg{Line: line})
		}
	}
	return len(p), nil
}
