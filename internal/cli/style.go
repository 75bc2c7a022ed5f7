package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	clrBrand  = lipgloss.Color("36")
	clrGreen  = lipgloss.Color("114")
	clrRed    = lipgloss.Color("203")
	clrYellow = lipgloss.Color("220")
	clrDim    = lipgloss.Color("245")
	clrWhite  = lipgloss.Color("255")
)

// styles renders CLI output. Styling is off unless the writer is a terminal
// and --json is not set, so piped output stays plain.
type styles struct {
	enabled bool

	Header  lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	enabled := false
	if f, ok := w.(*os.File); ok && !jsonMode {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	s := styles{enabled: enabled}
	if !enabled {
		plain := lipgloss.NewStyle()
		s.Header, s.Key, s.Value, s.Dim = plain, plain, plain, plain
		s.Good, s.Bad, s.Warning, s.Error = plain, plain, plain, plain
		return s
	}
	s.Header = lipgloss.NewStyle().Bold(true).Foreground(clrBrand)
	s.Key = lipgloss.NewStyle().Foreground(clrDim)
	s.Value = lipgloss.NewStyle().Foreground(clrWhite)
	s.Dim = lipgloss.NewStyle().Foreground(clrDim)
	s.Good = lipgloss.NewStyle().Foreground(clrGreen)
	s.Bad = lipgloss.NewStyle().Foreground(clrRed)
	s.Warning = lipgloss.NewStyle().Foreground(clrYellow).Bold(true)
	s.Error = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	return s
}

// kv formats "  key:   value".
func (s styles) kv(key, value string) string {
	return fmt.Sprintf("  %s %s", s.Key.Render(fmt.Sprintf("%-12s", key+":")), s.Value.Render(value))
}

func (s styles) header(title string) string {
	return s.Header.Render(title)
}

func (s styles) dim(text string) string {
	return s.Dim.Render(text)
}

// mark renders a pass or fail tick.
func (s styles) mark(ok bool) string {
	if ok {
		return s.Good.Render("✓")
	}
	return s.Bad.Render("✗")
}

func (s styles) errPrefix() string {
	return s.Error.Render("ERROR:")
}

func (s styles) warnPrefix() string {
	return s.Warning.Render("WARNING:")
}
