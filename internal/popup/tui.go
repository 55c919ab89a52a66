package popup

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/webclient"
)

// DisconnectedStatus is shown when the live channel to the daemon ends.
const DisconnectedStatus = "Live updates disconnected; reopen the popup to reconnect."

// Options selects the tab a re-check targets. Empty fields mean the active tab.
type Options struct {
	TabID  string
	TabURL string
}

type viewMsg struct{ view View }

type streamMsg struct{ msg model.Message }

type streamClosedMsg struct{}

// Model is the bubbletea model of the terminal popup.
type Model struct {
	ctx       context.Context
	presenter *Presenter
	updates   <-chan model.Message
	opts      Options

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	styles   styles

	view   View
	width  int
	height int
	ready  bool
	live   bool
}

// NewModel creates the popup model. updates may be nil when no live channel
// is available.
func NewModel(ctx context.Context, p *Presenter, updates <-chan model.Message, opts Options) Model {
	return Model{
		ctx:       ctx,
		presenter: p,
		updates:   updates,
		opts:      opts,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		viewport:  viewport.New(0, 0),
		styles:    newStyles(),
		view:      p.View(),
		live:      updates != nil,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.open(), m.waitForUpdate())
}

func (m Model) open() tea.Cmd {
	return func() tea.Msg {
		return viewMsg{view: m.presenter.Open(m.ctx)}
	}
}

func (m Model) recheck() tea.Cmd {
	return func() tea.Msg {
		return viewMsg{view: m.presenter.Recheck(m.ctx, m.opts.TabID, m.opts.TabURL)}
	}
}

func (m Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg{msg: msg}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.ready = true
		m.renderContent()
		return m, nil

	case viewMsg:
		m.view = msg.view
		m.renderContent()
		return m, nil

	case streamMsg:
		if v, changed := m.presenter.Apply(msg.msg); changed {
			m.view = v
			m.renderContent()
		}
		return m, m.waitForUpdate()

	case streamClosedMsg:
		m.live = false
		m.updates = nil
		m.view = m.presenter.SetStatus(DisconnectedStatus)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Recheck):
			m.view = m.presenter.SetStatus(CheckingStatus)
			return m, m.recheck()
		case key.Matches(msg, m.keys.Clear):
			m.view = m.presenter.Clear()
			m.renderContent()
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// header: title, status, timestamp; footer: help line.
const chromeHeight = 5

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := m.styles.Title.Render("convotap")
	if m.live {
		title += " " + m.styles.Success.Render("● live")
	} else {
		title += " " + m.styles.Muted.Render("○ offline")
	}
	if m.view.Source != "" {
		title += " " + m.styles.Muted.Render("via "+m.view.Source)
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(m.statusStyle().Render(m.view.Status))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(m.view.Timestamp))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.styles.StatusBar.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return b.String()
}

func (m Model) statusStyle() lipgloss.Style {
	switch {
	case m.view.Failed, strings.HasPrefix(m.view.Status, "Error"):
		return m.styles.Error
	case m.view.Status == DisconnectedStatus:
		return m.styles.Warning
	default:
		return m.styles.Status
	}
}

func (m *Model) renderContent() {
	if !m.ready {
		return
	}
	var b strings.Builder
	b.WriteString(m.styles.Section.Render("Request payload"))
	b.WriteString("\n")
	b.WriteString(highlight(m.view.Request, m.width))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Section.Render("Response body"))
	b.WriteString("\n")
	b.WriteString(highlight(m.view.Response, m.width))
	m.viewport.SetContent(b.String())
}

// highlight applies chroma JSON highlighting to JSON text; other text is only
// wrapped.
func highlight(source string, width int) string {
	if !looksLikeJSON(source) {
		return wrapText(source, width)
	}

	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return buf.String()
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

// Run opens the terminal popup against the daemon until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, client *webclient.Client, logger logging.Logger, opts Options) error {
	p, err := NewPresenter(client, logger)
	if err != nil {
		return err
	}

	var updates <-chan model.Message
	sub, err := client.Subscribe(ctx)
	if err != nil {
		logger.Warn("live updates unavailable", logging.Field{Key: "error", Value: err.Error()})
	} else {
		defer sub.Close()
		updates = sub.Messages()
	}

	prog := tea.NewProgram(
		NewModel(ctx, p, updates, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := prog.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
