package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
	"bizassist/internal/tools"
)

// Runner executes one command. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// DeskOptions configures the interactive desk.
type DeskOptions struct {
	Runner    Runner
	Session   tools.Session
	ToolNames []string
	// Provider and Model are shown in the banner.
	Provider  string
	Model     string
	ShowAudit bool
	Styled    bool
}

type runDoneMsg struct {
	result orchestrator.Result
	err    error
}

type deskModel struct {
	ctx       context.Context
	opts      DeskOptions
	session   tools.Session
	tab       string
	showAudit bool
	markdown  Markdown

	viewport  viewport.Model
	textInput textinput.Model
	spinner   spinner.Model
	messages  []string
	banner    []string
	busy      bool
	ready     bool
	width     int
	height    int
}

func newDeskModel(ctx context.Context, opts DeskOptions) deskModel {
	ti := textinput.New()
	ti.Placeholder = "Ask for something, e.g. invoice Acme for 3 days of design, or /help"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ClrBrand)

	m := deskModel{
		ctx:       ctx,
		opts:      opts,
		session:   opts.Session,
		showAudit: opts.ShowAudit,
		markdown:  NewMarkdown(80, opts.Styled),
		textInput: ti,
		spinner:   sp,
	}
	m.banner = m.bannerLines()
	m.messages = append([]string(nil), m.banner...)
	return m
}

func (m deskModel) bannerLines() []string {
	lines := []string{Brand.Render("bizassist desk")}
	if m.opts.Provider != "" {
		lines = append(lines, Info("model", strings.TrimSpace(m.opts.Provider+" "+m.opts.Model)))
	}
	lines = append(lines, Info("session", m.sessionLabel()), Dim("Type /help for commands."))
	return []string{strings.Join(lines, "\n")}
}

func (m deskModel) sessionLabel() string {
	label := fmt.Sprintf("role=%s persona=%s currency=%s", m.session.Role, model.ParsePersona(string(m.session.Persona)), m.session.Currency)
	if m.tab != "" {
		label += " tab=" + m.tab
	}
	return label
}

func (m deskModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m deskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var tiCmd, vpCmd, spCmd tea.Cmd
	m.textInput, tiCmd = m.textInput.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.SetValue("")
			if strings.HasPrefix(input, "/") {
				return m.handleSlash(input)
			}
			m.push(Prompt("you") + input)
			m.busy = true
			return m, tea.Batch(m.runCmd(input), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.applyWindowSize(msg.Width, msg.Height)

	case runDoneMsg:
		m.busy = false
		if msg.err != nil {
			line := Errorf("%v", msg.err)
			if model.KindOf(msg.err) == model.KindTransportFailure {
				line += "\n" + Dim("Hint: check the provider API key and network, then retry.")
			}
			m.push(line)
		} else {
			m.push(RenderResult(msg.result, m.markdown, m.showAudit))
		}
		return m, nil
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m deskModel) handleSlash(input string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.push(deskHelp())
	case "/clear":
		m.messages = append([]string(nil), m.banner...)
		m.refresh()
	case "/tools":
		m.push(Info("tools", strings.Join(m.opts.ToolNames, ", ")))
	case "/audit":
		m.showAudit = !m.showAudit
		m.push(Dim(fmt.Sprintf("audit trail %s", onOff(m.showAudit))))
	case "/tab":
		if arg == "" || strings.EqualFold(arg, "none") {
			m.tab = ""
		} else {
			m.tab = arg
		}
		m.push(Info("session", m.sessionLabel()))
	case "/persona":
		m.session.Persona = model.ParsePersona(arg)
		m.push(Info("session", m.sessionLabel()))
	case "/role":
		role, ok := model.ParseRole(arg)
		if !ok {
			m.push(Errorf("unknown role %q", arg))
			break
		}
		m.session.Role = role
		m.push(Info("session", m.sessionLabel()))
	case "/currency":
		c, ok := model.ParseCurrency(arg)
		if !ok {
			m.push(Errorf("unsupported currency %q", arg))
			break
		}
		m.session.Currency = c
		m.push(Info("session", m.sessionLabel()))
	default:
		m.push(Errorf("unknown command %s; try /help", cmd))
	}
	return m, nil
}

func (m deskModel) runCmd(command string) tea.Cmd {
	req := orchestrator.Request{Command: command, Session: m.session, Tab: m.tab}
	runner, ctx := m.opts.Runner, m.ctx
	return func() tea.Msg {
		res, err := runner.Run(ctx, req)
		return runDoneMsg{result: res, err: err}
	}
}

func (m *deskModel) push(line string) {
	m.messages = append(m.messages, line)
	m.refresh()
}

func (m *deskModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
	m.viewport.GotoBottom()
}

func (m deskModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " ")
	} else {
		b.WriteString(Prompt("you"))
	}
	b.WriteString(m.textInput.View())
	b.WriteString("\n")
	b.WriteString(Dim(m.sessionLabel() + "  ·  /help"))
	return b.String()
}

func (m *deskModel) applyWindowSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.textInput.Width = max(width-10, 1)
	m.markdown = NewMarkdown(max(width-4, 20), m.opts.Styled)

	vpWidth, vpHeight := max(width-2, 1), max(height-3, 1)
	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.ready = true
		m.refresh()
		return
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
}

func deskHelp() string {
	rows := [][2]string{
		{"/help", "Show this help"},
		{"/quit", "Leave the desk"},
		{"/clear", "Clear the conversation"},
		{"/tools", "List the tools the assistant can use"},
		{"/audit", "Toggle the audit trail under answers"},
		{"/tab <name|none>", "Set the focus area, e.g. Invoices"},
		{"/persona <name>", "Switch tone: PA, Accountant or Intern"},
		{"/role <role>", "Act as owner, manager, member or viewer"},
		{"/currency <code>", "Default currency: USD, GBP or EUR"},
	}
	var b strings.Builder
	b.WriteString(Brand.Render("Commands:"))
	for _, r := range rows {
		fmt.Fprintf(&b, "\n  %-18s %s", Keyword.Render(r[0]), Muted.Render(r[1]))
	}
	b.WriteString("\n" + Dim("Anything else is sent to the assistant."))
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// RunDesk runs the interactive desk until the user quits.
func RunDesk(ctx context.Context, opts DeskOptions) error {
	if opts.Runner == nil {
		return fmt.Errorf("desk needs a runner")
	}
	p := tea.NewProgram(newDeskModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
