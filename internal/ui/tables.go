package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/resource"
)

// Table builds a rounded table. The first column is highlighted.
func (p *Printer) Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...)

	if !p.color {
		return t.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).String()
	}

	return t.
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().
					Foreground(ColorPrimary).
					Bold(true).
					Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().
					Foreground(ColorInfo).
					Bold(true).
					Padding(0, 1)
			default:
				return lipgloss.NewStyle().
					Foreground(ColorText).
					Padding(0, 1)
			}
		}).
		String()
}

// Outputs renders driver output snapshots
func (p *Printer) Outputs(snaps []drm.OutputSnapshot) string {
	if len(snaps) == 0 {
		return p.Subtle("No outputs")
	}

	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		crtc, mode := "-", "-"
		if s.Bound() {
			crtc = strconv.FormatUint(uint64(s.CRTCID), 10)
			if s.Mode != nil {
				mode = s.Mode.String()
			}
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(s.ConnectorID), 10),
			s.Name,
			p.Indicator(s.Connected()) + " " + connectionName(s.Connection),
			s.State.String(),
			crtc,
			mode,
			strconv.Itoa(len(s.Modes)),
		})
	}
	return p.Table([]string{"ID", "NAME", "CONNECTION", "STATE", "CRTC", "MODE", "MODES"}, rows)
}

// Modes lists the modes of one output, marking the current one
func (p *Printer) Modes(s drm.OutputSnapshot) string {
	rows := make([][]string, 0, len(s.Modes))
	for _, m := range s.Modes {
		current := ""
		if s.Mode != nil && *s.Mode == m {
			current = p.Indicator(true)
		}
		rows = append(rows, []string{m.Name, m.String(), current})
	}
	return p.Table([]string{"NAME", "MODE", "CURRENT"}, rows)
}

// Monitors renders the monitor layout
func (p *Printer) Monitors(monitors []display.Monitor) string {
	if len(monitors) == 0 {
		return p.Subtle("No monitors")
	}

	rows := make([][]string, 0, len(monitors))
	for _, m := range monitors {
		primary := ""
		if m.Primary {
			primary = p.Indicator(true)
		}
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("%d,%d", m.X, m.Y),
			fmt.Sprintf("%dx%d", m.Width, m.Height),
			fmt.Sprintf("%dx%d mm", m.MMWidth, m.MMHeight),
			fmt.Sprintf("%d Hz", m.RefreshHz),
			primary,
		})
	}
	return p.Table([]string{"NAME", "POSITION", "SIZE", "PHYSICAL", "REFRESH", "PRIMARY"}, rows)
}

// Windows renders the window tree as a flat list
func (p *Printer) Windows(windows []resource.Info) string {
	rows := make([][]string, 0, len(windows))
	for _, w := range windows {
		parent := fmt.Sprintf("%#x", w.Parent)
		if w.Root {
			parent = "root"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%#x", w.ID),
			parent,
			fmt.Sprintf("%dx%d+%d+%d", w.Rect.Width, w.Rect.Height, w.Rect.X, w.Rect.Y),
			strconv.Itoa(int(w.Depth)),
			mapStateName(w.MapState),
			strings.Join(w.Properties, ", "),
		})
	}
	return p.Table([]string{"ID", "PARENT", "GEOMETRY", "DEPTH", "MAP STATE", "PROPERTIES"}, rows)
}

// Clients renders the connected X11 clients
func (p *Printer) Clients(clients []ipc.ClientInfo, now time.Time) string {
	if len(clients) == 0 {
		return p.Subtle("No clients connected")
	}

	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.Address,
			fmt.Sprintf("%#x", c.ResourceBase),
			now.Sub(c.ConnectedAt).Truncate(time.Second).String(),
			strconv.FormatUint(c.Requests, 10),
		})
	}
	return p.Table([]string{"ID", "ADDRESS", "RESOURCE BASE", "UPTIME", "REQUESTS"}, rows)
}

func connectionName(c uint32) string {
	switch c {
	case drm.Connected:
		return "connected"
	case drm.Disconnected:
		return "disconnected"
	}
	return "unknown"
}

func mapStateName(s uint8) string {
	switch s {
	case xproto.MapStateViewable:
		return "viewable"
	case xproto.MapStateUnviewable:
		return "unviewable"
	}
	return "unmapped"
}
