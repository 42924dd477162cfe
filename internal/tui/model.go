package tui

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

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// ChatPort is the TUI-facing subset of the chat session.
type ChatPort interface {
	Initialize(ctx context.Context) *service.Stream
	Ask(ctx context.Context, question string) (*service.Stream, error)
}

type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
)

type entry struct {
	who     speaker
	text    string
	at      time.Time
	failed  bool
	pending bool
}

// streamMsg carries a freshly opened stream into Update.
type streamMsg struct {
	stream *service.Stream
	init   bool
}

type askErrMsg struct{ err error }

// eventMsg is one event read from the stream identified by id.
type eventMsg struct {
	id int
	ev domain.Event
	ok bool
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx      context.Context
	port     ChatPort
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	ready    bool
	now      func() time.Time

	stream       *service.Stream
	streamID     int
	initializing bool
	initFailed   bool
	busy         bool
	// cancelPending is set when Esc arrives before the answer's stream does.
	cancelPending bool
}

// New creates the chat UI. Initialization starts when the program runs.
func New(ctx context.Context, port ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:          ctx,
		port:         port,
		input:        ti,
		viewport:     vp,
		initializing: true,
		now:          time.Now,
	}
}

// Init blinks the cursor and starts initialization.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.startInit()) }

func (m Model) startInit() tea.Cmd {
	return func() tea.Msg { return streamMsg{stream: m.port.Initialize(m.ctx), init: true} }
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		s, err := m.port.Ask(m.ctx, q)
		if err != nil {
			return askErrMsg{err: err}
		}
		return streamMsg{stream: s}
	}
}

func waitEvent(id int, s *service.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		return eventMsg{id: id, ev: ev, ok: ok}
	}
}

// Update handles key, window and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case streamMsg:
		if m.cancelPending && !msg.init {
			m.cancelPending = false
			msg.stream.Abort()
			return m, nil
		}
		m.streamID++
		m.stream = msg.stream
		return m, waitEvent(m.streamID, m.stream)
	case askErrMsg:
		m.busy = false
		m.dropPending()
		if errors.Is(msg.err, domain.ErrBusy) {
			// A cancelled answer whose stream is still on its way keeps the flag.
			m.status = "Still answering. Press Esc to cancel."
		} else {
			m.cancelPending = false
			m.status = "Error: " + msg.err.Error()
		}
		m.refresh()
		return m, nil
	case eventMsg:
		if msg.id != m.streamID {
			return m, nil
		}
		return m.handleEvent(msg)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.stream != nil {
				m.stream.Abort()
			}
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEsc:
			if m.busy {
				m.cancelAnswer()
				return m, nil
			}
		case tea.KeyEnter:
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	switch {
	case q == "":
		return m, nil
	case m.initializing:
		m.status = "Still initializing..."
		return m, nil
	case m.initFailed:
		m.status = "Initialization failed. Press Ctrl+C to quit."
		return m, nil
	case m.busy:
		m.status = "Still answering. Press Esc to cancel."
		return m, nil
	}
	m.input.SetValue("")
	m.busy = true
	m.status = "Thinking..."
	at := m.now()
	m.entries = append(m.entries,
		entry{who: speakerUser, text: q, at: at},
		entry{who: speakerAssistant, at: at, pending: true},
	)
	m.refresh()
	return m, m.ask(q)
}

func (m Model) handleEvent(msg eventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		m.stream = nil
		return m, nil
	}
	ev := msg.ev
	if m.initializing {
		switch ev.Kind {
		case domain.EventPartial:
			m.status += ev.Text
		case domain.EventComplete:
			m.initializing = false
			m.status = "Ready. Ask a question."
		case domain.EventError:
			m.initializing = false
			m.initFailed = true
			m.status = "Initialization failed: " + ev.Err.Error()
		}
		if ev.Terminal() {
			return m, nil
		}
		return m, waitEvent(msg.id, m.stream)
	}

	last := m.lastPending()
	switch ev.Kind {
	case domain.EventPartial:
		if last != nil {
			last.text += ev.Text
		}
	case domain.EventComplete:
		if last != nil {
			last.text = ev.Text
			last.at = m.now()
			last.pending = false
		}
		m.busy = false
		m.status = ""
	case domain.EventError:
		if last != nil {
			last.text = "Error: " + ev.Err.Error()
			last.at = m.now()
			last.failed = true
			last.pending = false
		}
		m.busy = false
		m.status = ""
	}
	m.refresh()
	if ev.Terminal() {
		return m, nil
	}
	return m, waitEvent(msg.id, m.stream)
}

// cancelAnswer stops the current answer without waiting for it; events still
// in flight for it are ignored because their stream id no longer matches. If
// the answer's stream has not arrived yet it is aborted on arrival.
func (m *Model) cancelAnswer() {
	if m.stream != nil {
		m.stream.Abort()
	} else {
		m.cancelPending = true
	}
	m.streamID++
	m.stream = nil
	m.busy = false
	if last := m.lastPending(); last != nil {
		last.text += " (cancelled)"
		last.pending = false
		last.failed = true
	}
	m.status = "Cancelled."
	m.refresh()
}

func (m *Model) lastPending() *entry {
	if n := len(m.entries); n > 0 && m.entries[n-1].pending {
		return &m.entries[n-1]
	}
	return nil
}

func (m *Model) dropPending() {
	if m.lastPending() != nil {
		m.entries = m.entries[:len(m.entries)-1]
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("GSV Bot")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return hintStyle.Render("No messages yet.")
	}
	width := max(10, m.viewport.Width-4)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := userStyle.Render("You")
		if e.who == speakerAssistant {
			label = assistantStyle.Render("Assistant")
		}
		fmt.Fprintf(&b, "%s %s\n", timeStyle.Render(e.at.Format("15:04")), label)
		text := e.text
		if e.pending && text == "" {
			text = "..."
		}
		body := lipgloss.NewStyle().Width(width)
		if e.failed {
			body = body.Inherit(errorStyle)
		}
		b.WriteString(body.Render(text))
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	timeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
