// Package ui holds terminal styling and the interactive desk.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette (256-color).
var (
	ClrBrand  = lipgloss.Color("36")  // teal
	ClrMuted  = lipgloss.Color("245") // gray
	ClrSubtle = lipgloss.Color("242")
	ClrGreen  = lipgloss.Color("114")
	ClrRed    = lipgloss.Color("203")
	ClrYellow = lipgloss.Color("220")
)

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Brand   = lipgloss.NewStyle().Foreground(ClrBrand).Bold(true)
	Muted   = lipgloss.NewStyle().Foreground(ClrMuted)
	Subtle  = lipgloss.NewStyle().Foreground(ClrSubtle)
	Green   = lipgloss.NewStyle().Foreground(ClrGreen)
	Red     = lipgloss.NewStyle().Foreground(ClrRed)
	Yellow  = lipgloss.NewStyle().Foreground(ClrYellow)
	Keyword = lipgloss.NewStyle().Foreground(ClrBrand)
)

// Prompt renders "label> ".
func Prompt(label string) string {
	return Brand.Render(label+">") + " "
}

func Error(msg string) string {
	return Red.Render("error: " + msg)
}

func Errorf(format string, a ...any) string {
	return Error(fmt.Sprintf(format, a...))
}

// Info renders a label followed by muted detail.
func Info(label, detail string) string {
	return Brand.Render(label) + " " + Muted.Render(detail)
}

func Dim(text string) string {
	return Subtle.Render(text)
}

// Enabled reports whether color output is wanted.
func Enabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
