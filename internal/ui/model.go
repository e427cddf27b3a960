package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/1broseidon/multiwin/internal/platform"
)

const callTimeout = 5 * time.Second

type focus int

const (
	focusTarget focus = iota
	focusText
)

// model is the bubbletea model for one window.
type model struct {
	ctx      context.Context
	client   Client
	listener *Listener
	state    AppState

	target textinput.Model
	text   textinput.Model
	focus  focus

	width int
}

func newModel(ctx context.Context, client Client, listener *Listener, state AppState) model {
	target := textinput.New()
	target.Prompt = "to #"
	target.Placeholder = "id"
	target.CharLimit = 10
	target.Width = 10
	target.Validate = func(s string) error {
		if s == "" {
			return nil
		}
		_, err := strconv.ParseUint(s, 10, 32)
		return err
	}
	target.Focus()

	text := textinput.New()
	text.Prompt = "> "
	text.Placeholder = "message"
	text.CharLimit = 512

	return model{
		ctx:      ctx,
		client:   client,
		listener: listener,
		state:    state,
		target:   target,
		text:     text,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refresh(), m.listener.Wait())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.state = Reduce(m.state, msg.action)
		if m.state.Closed {
			return m, tea.Quit
		}
		return m, m.listener.Wait()

	case Action:
		m.state = Reduce(m.state, msg)
		if m.state.Closed {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+n":
			return m, m.createWindow()
		case "ctrl+r":
			return m, m.refresh()
		case "ctrl+w":
			return m, m.closeWindow()
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		case "enter":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusTarget {
		m.target, cmd = m.target.Update(msg)
	} else {
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

func (m *model) toggleFocus() {
	if m.focus == focusTarget {
		m.focus = focusText
		m.target.Blur()
		m.text.Focus()
		return
	}
	m.focus = focusTarget
	m.text.Blur()
	m.target.Focus()
}

// submit sends the typed message to the typed target.
func (m model) submit() (tea.Model, tea.Cmd) {
	target, err := parseTarget(m.target.Value())
	if err != nil {
		m.state = Reduce(m.state, CommandFailed{Err: err})
		return m, nil
	}
	text := m.text.Value()
	m.text.Reset()
	return m, m.sendMessage(target, text)
}

func parseTarget(s string) (platform.WindowID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return platform.NoWindow, fmt.Errorf("enter a target window id")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return platform.NoWindow, fmt.Errorf("invalid window id %q", s)
	}
	return platform.WindowID(n), nil
}

func (m model) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, callTimeout)
}

func (m model) createWindow() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		if err := m.client.CreateWindow(ctx); err != nil {
			return CommandFailed{Err: err}
		}
		return nil
	}
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		ids, err := m.client.WindowIDs(ctx)
		if err != nil {
			return CommandFailed{Err: err}
		}
		return WindowIDsUpdated{IDs: ids}
	}
}

func (m model) sendMessage(target platform.WindowID, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		result, err := m.client.SendMessage(ctx, target, text)
		if err != nil {
			return CommandFailed{Err: err}
		}
		return MessageSent{Result: *result}
	}
}

func (m model) closeWindow() tea.Cmd {
	id := m.state.WindowID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		if err := m.client.CloseWindow(ctx, id); err != nil {
			return CommandFailed{Err: err}
		}
		return nil
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(14)
	ownIDStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	messageStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// View implements tea.Model.
func (m model) View() string {
	s := m.state

	header := titleStyle.Render(fmt.Sprintf("%s #%d", s.Title, s.WindowID))

	ids := lo.Map(s.WindowIDs, func(id platform.WindowID, _ int) string {
		label := strconv.FormatUint(uint64(id), 10)
		if id == s.WindowID {
			return ownIDStyle.Render(label)
		}
		return label
	})
	windows := labelStyle.Render("Windows") + strings.Join(ids, ", ")
	if len(ids) == 0 {
		windows = labelStyle.Render("Windows") + helpStyle.Render("(none)")
	}

	message := s.Message
	if message == "" {
		message = helpStyle.Render("no messages yet")
	}
	messageWidth := 40
	if m.width > 4 {
		messageWidth = m.width - 4
	}
	messageBox := messageStyle.Width(messageWidth).Render(message)

	lines := []string{header, "", windows, labelStyle.Render("Last message"), messageBox}
	if s.LastSend != nil {
		lines = append(lines, labelStyle.Render("Last send")+renderSend(s.LastSend.Delivered, s.LastSend.TargetID))
	}
	if s.Err != "" {
		lines = append(lines, errStyle.Render("Error: "+s.Err))
	}
	lines = append(lines,
		"",
		m.target.View()+"  "+m.text.View(),
		"",
		helpStyle.Render("enter send · tab switch field · ctrl+n new window · ctrl+r refresh · ctrl+w close · esc quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSend(delivered bool, target platform.WindowID) string {
	if delivered {
		return okStyle.Render(fmt.Sprintf("delivered to #%d", target))
	}
	return warnStyle.Render(fmt.Sprintf("window #%d not found", target))
}
