package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"bizassist/internal/orchestrator"
)

// Markdown renders assistant answers. The zero value prints text as-is.
type Markdown struct {
	r *glamour.TermRenderer
}

// NewMarkdown builds a renderer wrapping at width. With styled unset it
// uses the plain "notty" style so output is stable in pipes and tests.
func NewMarkdown(width int, styled bool) Markdown {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return Markdown{}
	}
	return Markdown{r: r}
}

func (m Markdown) Render(text string) string {
	if m.r == nil {
		return text
	}
	out, err := m.r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// AuditLines renders one line per audit entry: a mark, the step and its
// detail.
func AuditLines(entries []orchestrator.AuditEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		mark := Green.Render("✓")
		if !e.OK {
			mark = Red.Render("✗")
		}
		detail := e.Detail
		if e.Step == orchestrator.StepToolResult && e.ToolCall != nil {
			detail = e.ToolCall.Name + ": " + detail
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", mark, Muted.Render(e.Step), detail))
	}
	return lines
}

// RenderResult formats a finished run: the answer, then the audit trail
// when showAudit is set.
func RenderResult(res orchestrator.Result, md Markdown, showAudit bool) string {
	var b strings.Builder
	b.WriteString(md.Render(res.Answer))
	if res.State == orchestrator.StateMaxRoundsExceeded {
		b.WriteString("\n" + Yellow.Render("Stopped after the maximum number of rounds."))
	}
	if showAudit && len(res.Audit) > 0 {
		b.WriteString("\n" + Dim(fmt.Sprintf("audit (%d rounds, %d tool calls):", res.Rounds, res.ToolCalls)))
		for _, line := range AuditLines(res.Audit) {
			b.WriteString("\n  " + line)
		}
	}
	return b.String()
}
