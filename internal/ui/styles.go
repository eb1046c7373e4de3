// Package ui provides consistent styling and tables for the xkms CLI
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray

	ColorConnected    = ColorSuccess
	ColorDisconnected = ColorError
)

// Icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconActive  = "●"
	IconIdle    = "○"
)

// Printer renders styled output, or plain text when colour is off
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a printer writing to w. Colour is enabled only when w
// is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: IsTerminal(w)}
}

// NewPrinterWithColor creates a printer with colour forced on or off
func NewPrinterWithColor(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// IsTerminal reports whether w is a file attached to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) style(fg lipgloss.Color) lipgloss.Style {
	if !p.color {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(fg)
}

// Success formats a success line
func (p *Printer) Success(msg string) string {
	return p.style(ColorSuccess).Render(IconSuccess) + " " + msg
}

// Error formats an error line
func (p *Printer) Error(msg string) string {
	return p.style(ColorError).Render(IconError) + " " + msg
}

// Warning formats a warning line
func (p *Printer) Warning(msg string) string {
	return p.style(ColorWarning).Render(IconWarning) + " " + msg
}

// Subtle dims secondary text
func (p *Printer) Subtle(msg string) string {
	return p.style(ColorSubtle).Render(msg)
}

// Indicator returns a filled or hollow dot
func (p *Printer) Indicator(active bool) string {
	if active {
		return p.style(ColorConnected).Render(IconActive)
	}
	return p.style(ColorDisconnected).Render(IconIdle)
}

// Println writes s followed by a newline
func (p *Printer) Println(s string) {
	_, _ = io.WriteString(p.w, s+"\n")
}
