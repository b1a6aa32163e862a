package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/muesli/reflow/wordwrap"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// header, status, transcript, input and help lines plus the chat border
	chromeHeight = 7
)

type eventMsg struct{ event events.Event }

type eventsClosedMsg struct{}

// noticeMsg reports the outcome of a control action run off the update loop.
type noticeMsg struct {
	text string
	err  error
}

type chatLine struct {
	role        string
	text        string
	hasSnapshot bool
}

type model struct {
	assistant  Assistant
	microphone Microphone
	screen     ScreenShare
	events     <-chan events.Event
	keys       keyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	chat       []chatLine
	transcript string
	interim    bool
	status     string
	notice     string
	noticeErr  bool
	listening  bool
	sharing    bool
	busy       bool
	width      int
}

func newModel(options Options, eventsCh <-chan events.Event) model {
	input := textinput.New()
	input.Placeholder = "Type a question or just talk"
	input.Prompt = "> "
	input.CharLimit = 500
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := model{
		assistant:  options.Assistant,
		microphone: options.Microphone,
		screen:     options.ScreenShare,
		events:     eventsCh,
		keys:       defaultKeyMap(),
		input:      input,
		viewport:   viewport.New(defaultWidth-2, defaultHeight-chromeHeight),
		spinner:    s,
		help:       help.New(),
		width:      defaultWidth,
	}
	if m.microphone != nil {
		m.listening = m.microphone.Listening()
	}
	if m.screen != nil {
		m.sharing = m.screen.Sharing()
	}
	return m
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case eventMsg:
		m.apply(msg.event)
		cmds = append(cmds, waitForEvent(m.events))

	case eventsClosedMsg:
		return m, tea.Quit

	case noticeMsg:
		m.setNotice(msg.text, msg.err)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			question := strings.TrimSpace(m.input.Value())
			if question != "" && m.assistant != nil {
				m.input.SetValue("")
				m.assistant.Ask(question)
			}
			return m, nil
		case key.Matches(msg, m.keys.Cancel):
			if m.assistant != nil {
				m.assistant.CancelTurn()
			}
			return m, nil
		case key.Matches(msg, m.keys.Backend):
			m.switchBackend()
			return m, nil
		case key.Matches(msg, m.keys.Voice):
			m.nextVoice()
			return m, nil
		case key.Matches(msg, m.keys.Listen):
			return m, m.toggleMicrophone()
		case key.Matches(msg, m.keys.Screen):
			return m, m.toggleScreenShare()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.input.Width = max(width-4, 10)
	m.help.Width = width
	m.viewport.Width = max(width-2, 10)
	m.viewport.Height = max(height-chromeHeight, 3)
	m.refreshChat()
}

func (m *model) apply(event events.Event) {
	switch e := event.(type) {
	case events.ChatMessageAppended:
		m.chat = append(m.chat, chatLine{role: e.Role, text: e.Text, hasSnapshot: e.HasSnapshot})
		if orchestration.Role(e.Role) == orchestration.RoleUser {
			m.transcript = ""
			m.busy = true
		}
		m.refreshChat()
	case events.TranscriptUpdated:
		m.transcript = e.Text
		m.interim = !e.Final
	case events.StatusUpdated:
		m.status = e.Status
		m.busy = true
	case events.ListeningChanged:
		m.listening = e.Listening
	case events.TurnCompleted, events.TurnCancelled:
		m.busy = false
	case events.TurnFailed:
		m.busy = false
		m.setNotice("", e.Err)
	}
}

func (m *model) setNotice(text string, err error) {
	if err != nil {
		m.notice = err.Error()
		m.noticeErr = true
		return
	}
	m.notice = text
	m.noticeErr = false
}

func (m *model) switchBackend() {
	if m.assistant == nil {
		return
	}
	next := llms.BackendSecondary
	if m.assistant.Backend() == llms.BackendSecondary {
		next = llms.BackendPrimary
	}
	if err := m.assistant.SetBackend(next); err != nil {
		m.setNotice("", err)
		return
	}
	m.setNotice(fmt.Sprintf("Next question goes to the %s backend.", next), nil)
}

func (m *model) nextVoice() {
	if m.assistant == nil {
		return
	}
	voices := texttospeech.Voices()
	current := m.assistant.Voice()
	next := voices[0]
	for i, voice := range voices {
		if voice.ID == current {
			next = voices[(i+1)%len(voices)]
			break
		}
	}
	if err := m.assistant.SetVoice(next.ID); err != nil {
		m.setNotice("", err)
		return
	}
	m.setNotice(fmt.Sprintf("Voice set to %s.", next.Name), nil)
}

func (m *model) toggleMicrophone() tea.Cmd {
	if m.microphone == nil {
		m.setNotice("No microphone configured.", nil)
		return nil
	}
	microphone := m.microphone
	enable := !microphone.Listening()
	return func() tea.Msg {
		if err := microphone.SetListening(enable); err != nil {
			return noticeMsg{err: err}
		}
		if enable {
			return noticeMsg{text: "Microphone on."}
		}
		return noticeMsg{text: "Microphone off."}
	}
}

func (m *model) toggleScreenShare() tea.Cmd {
	if m.screen == nil {
		m.setNotice("No screen source configured.", nil)
		return nil
	}
	enable := !m.screen.Sharing()
	if err := m.screen.SetSharing(enable); err != nil {
		m.setNotice("", err)
		return nil
	}
	m.sharing = enable
	if enable {
		m.setNotice("Screen sharing started.", nil)
	} else {
		m.setNotice("Screen sharing stopped.", nil)
	}
	return nil
}

func (m *model) refreshChat() {
	width := max(m.viewport.Width-2, 10)
	var b strings.Builder
	for i, line := range m.chat {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if orchestration.Role(line.role) == orchestration.RoleUser {
			b.WriteString(userStyle.Render("You"))
			if line.hasSnapshot {
				b.WriteString(statusStyle.Render(" [screenshot]"))
			}
		} else {
			b.WriteString(assistantStyle.Render("Ema"))
		}
		b.WriteString("\n")
		b.WriteString(wordwrap.String(line.text, width))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Ema"))
	b.WriteString("  ")
	b.WriteString(indicator("mic", m.listening))
	b.WriteString("  ")
	b.WriteString(indicator("screen", m.sharing))
	if m.assistant != nil {
		b.WriteString(statusStyle.Render(fmt.Sprintf("  backend: %s  voice: %s", m.assistant.Backend(), m.assistant.Voice().Name())))
	}
	b.WriteString("\n")

	b.WriteString(chatStyle.Render(m.viewport.View()))
	b.WriteString("\n")

	if m.busy {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	switch {
	case m.notice != "" && m.noticeErr:
		b.WriteString(errorStyle.Render(m.notice))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
		if m.notice != "" {
			b.WriteString(statusStyle.Render("  " + m.notice))
		}
	default:
		b.WriteString(statusStyle.Render(m.notice))
	}
	b.WriteString("\n")

	if m.transcript != "" {
		if m.interim {
			b.WriteString(interimStyle.Render(m.transcript))
		} else {
			b.WriteString(m.transcript)
		}
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func indicator(label string, on bool) string {
	if on {
		return onStyle.Render("● " + label)
	}
	return offStyle.Render("○ " + label)
}
