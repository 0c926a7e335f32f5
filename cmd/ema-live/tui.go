package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-live/core/conversation"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/session"
	"github.com/muesli/reflow/wordwrap"
)

const maxNotices = 3

// Messages forwarded from the session and conversation callbacks.
type (
	stateMsg    session.State
	controlsMsg session.Controls
	noticeMsg   struct{ err error }
	historyMsg  struct{}
	turnMsg     struct {
		turn  conversation.Turn
		final bool
	}
	transcriptMsg struct {
		role events.Role
		text string
	}
)

// actionDoneMsg reports the result of a manager call made from a command.
type actionDoneMsg struct {
	what string
	err  error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	borderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
	statusStyles = map[session.State]lipgloss.Style{
		session.StateDisconnected: offStyle,
		session.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		session.StateConnected:    onStyle,
		session.StateReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

type model struct {
	ctx     context.Context
	manager *session.Manager
	updates <-chan tea.Msg

	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int

	state       session.State
	controls    session.Controls
	live        *conversation.Turn
	transcripts map[events.Role]string
	notices     []string
}

func newModel(ctx context.Context, manager *session.Manager, updates <-chan tea.Msg) model {
	input := textinput.New()
	input.Placeholder = "say something, or /help"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	return model{
		ctx:         ctx,
		manager:     manager,
		updates:     updates,
		input:       input,
		viewport:    viewport.New(80, 20),
		transcripts: map[events.Role]string{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.listen(),
		m.run("connect", m.manager.Connect),
	)
}

func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.updates:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run calls a manager method off the UI goroutine.
func (m model) run(what string, call func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		return actionDoneMsg{what: what, err: call(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlT:
			return m, m.toggleMicrophone()
		case tea.KeyCtrlO:
			return m, m.toggleSpeaker()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			cmd := m.submit(line)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.viewport.Width = max(msg.Width-2, 10)
		m.viewport.Height = max(msg.Height-9, 3)
		m.refresh()

	case stateMsg:
		m.state = session.State(msg)
		cmds = append(cmds, m.listen())

	case controlsMsg:
		m.controls = session.Controls(msg)
		cmds = append(cmds, m.listen())

	case noticeMsg:
		m.notice(msg.err)
		cmds = append(cmds, m.listen())

	case turnMsg:
		if msg.final {
			m.live = nil
		} else {
			turn := msg.turn
			m.live = &turn
		}
		m.refresh()
		cmds = append(cmds, m.listen())

	case transcriptMsg:
		m.transcripts[msg.role] = msg.text
		m.refresh()
		cmds = append(cmds, m.listen())

	case historyMsg:
		m.refresh()
		cmds = append(cmds, m.listen())

	case actionDoneMsg:
		if msg.err != nil {
			m.notice(fmt.Errorf("%s: %w", msg.what, msg.err))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) submit(line string) tea.Cmd {
	cmd, err := parseCommand(line)
	if err != nil {
		if !errors.Is(err, errEmptyInput) {
			m.notice(err)
		}
		return nil
	}

	switch cmd.kind {
	case commandMicrophone:
		return m.toggleMicrophone()
	case commandSpeaker:
		return m.toggleSpeaker()
	case commandConnect:
		return m.run("connect", m.manager.Connect)
	case commandDisconnect:
		return m.run("disconnect", m.manager.Disconnect)
	case commandQuit:
		return tea.Quit
	case commandHelp:
		m.notices = append(m.notices, helpText)
		m.trimNotices()
		return nil
	case commandImage:
		path := cmd.arg
		return m.run("send image", func(ctx context.Context) error {
			mimeType, data, err := readImage(path)
			if err != nil {
				return err
			}
			return m.manager.SendImage(ctx, mimeType, data)
		})
	}

	text := cmd.arg
	return m.run("send text", func(ctx context.Context) error {
		return m.manager.SendText(ctx, text)
	})
}

func (m model) toggleMicrophone() tea.Cmd {
	on := !m.controls.Microphone
	return m.run("microphone", func(ctx context.Context) error {
		return m.manager.SetMicrophone(ctx, on)
	})
}

func (m model) toggleSpeaker() tea.Cmd {
	on := !m.controls.Speaker
	return m.run("speaker", func(ctx context.Context) error {
		return m.manager.SetSpeaker(ctx, on)
	})
}

func (m *model) notice(err error) {
	if err == nil {
		return
	}
	logger.Info("notice", "error", err)
	m.notices = append(m.notices, err.Error())
	m.trimNotices()
}

func (m *model) trimNotices() {
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// refresh re-renders the conversation into the viewport and keeps it
// scrolled to the newest entry.
func (m *model) refresh() {
	width := max(m.viewport.Width-2, 10)
	var b strings.Builder
	for _, entry := range m.manager.Conversation().History() {
		switch {
		case entry.Turn != nil:
			b.WriteString(renderTurn(*entry.Turn, width))
		case entry.Line != nil:
			b.WriteString(renderLine(*entry.Line, width))
		}
		b.WriteString("\n")
	}
	if m.live != nil {
		b.WriteString(renderTurn(*m.live, width))
		b.WriteString("\n")
	}
	for _, role := range []events.Role{events.RoleUser, events.RoleAgent} {
		if text := m.transcripts[role]; text != "" {
			b.WriteString(dimStyle.Render(wordwrap.String(fmt.Sprintf("%s (hearing): %s", role, text), width)))
			b.WriteString("\n")
		}
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func renderTurn(turn conversation.Turn, width int) string {
	author := turn.Author
	if author == "" {
		author = "agent"
	}
	text := turn.Text
	switch turn.Outcome {
	case conversation.TurnLive:
		text += " …"
	case conversation.TurnInterrupted:
		text += " [interrupted]"
	}
	return agentStyle.Render(author+":") + " " + wordwrap.String(text, max(width-len(author)-2, 10))
}

func renderLine(line conversation.Line, width int) string {
	style := userStyle
	if line.Role == events.RoleAgent {
		style = dimStyle
	}
	return style.Render(wordwrap.String(fmt.Sprintf("%s said: %s", line.Role, line.Text), width))
}

func (m model) View() string {
	status := statusStyles[m.state].Render(m.state.String())
	header := fmt.Sprintf("%s  %s  session %s  mic %s  speaker %s",
		titleStyle.Render("ema-live"),
		status,
		m.manager.SessionID(),
		toggle(m.controls.Microphone),
		toggle(m.controls.Speaker),
	)

	var notices string
	for _, n := range m.notices {
		notices += noticeStyle.Render("! "+n) + "\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		borderStyle.Render(m.viewport.View()),
		notices+m.input.View(),
		dimStyle.Render("ctrl+t mic  ctrl+o speaker  pgup/pgdn scroll  ctrl+c quit"),
	)
}

func toggle(on bool) string {
	if on {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}
