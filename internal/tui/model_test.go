package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chat"
	"ragchat/internal/service"
)

type echoCompleter struct {
	// gate, when set, blocks after the first fragment.
	gate chan struct{}
}

func (echoCompleter) Name() string { return "echo" }

func (c echoCompleter) Complete(ctx context.Context, req chat.Request, onPartial func(string)) (string, error) {
	onPartial("you said: ")
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return "", chat.Wrap("echo", ctx.Err())
		}
	}
	onPartial(req.Prompt)
	return "you said: " + req.Prompt, nil
}

func newModel(t *testing.T, c chat.Completer) (Model, *service.Session) {
	t.Helper()
	h, err := chat.NewHistory(10)
	require.NoError(t, err)
	s := service.NewSession(service.SessionConfig{Completer: c, History: h})
	m := New(context.Background(), s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), s
}

// pump runs cmd and feeds its messages back into the model until no command
// is left.
func pump(m Model, cmd tea.Cmd) Model {
	for cmd != nil {
		next, c := m.Update(cmd())
		m = next.(Model)
		cmd = c
	}
	return m
}

func typeQuestion(m Model, q string) (Model, tea.Cmd) {
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_InitializeThenAsk(t *testing.T) {
	m, s := newModel(t, echoCompleter{})

	_, cmd := typeQuestion(m, "too early")
	assert.Nil(t, cmd)

	m = pump(m, m.startInit())
	assert.False(t, m.initializing)
	assert.Equal(t, "Ready. Ask a question.", m.status)

	m, cmd = typeQuestion(m, "hello")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	m = pump(m, cmd)
	assert.False(t, m.busy)
	require.Len(t, m.entries, 2)
	assert.Equal(t, "hello", m.entries[0].text)
	assert.Equal(t, "you said: hello", m.entries[1].text)
	assert.False(t, m.entries[1].pending)
	assert.Len(t, s.History(), 2)
	assert.True(t, strings.Contains(m.View(), "you said: hello"))
}

func TestModel_EscCancelsAnswer(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	m, s := newModel(t, echoCompleter{gate: gate})
	m = pump(m, m.startInit())

	m, cmd := typeQuestion(m, "hello")
	next, cmd := m.Update(cmd())
	m = next.(Model)
	next, cmd = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "you said: ", m.entries[1].text)
	require.NotNil(t, cmd)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.False(t, m.busy)
	assert.True(t, m.entries[1].failed)
	assert.Contains(t, m.entries[1].text, "(cancelled)")

	// The read pending on the cancelled stream is stale and ignored.
	m = pump(m, cmd)
	assert.Equal(t, "you said:  (cancelled)", m.entries[1].text)
	assert.Empty(t, s.History())
}

func TestModel_StaleEventIgnored(t *testing.T) {
	m, _ := newModel(t, echoCompleter{})
	m.streamID = 5
	next, cmd := m.Update(eventMsg{id: 4, ok: true})
	assert.Nil(t, cmd)
	assert.Equal(t, m.status, next.(Model).status)
}

// stubbornCompleter ignores cancellation until release is closed.
type stubbornCompleter struct{ release chan struct{} }

func (stubbornCompleter) Name() string { return "stubborn" }

func (c stubbornCompleter) Complete(_ context.Context, _ chat.Request, onPartial func(string)) (string, error) {
	onPartial("thinking")
	<-c.release
	return "thinking", nil
}

func TestModel_EscDoesNotWaitForProducer(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m, _ := newModel(t, stubbornCompleter{release: release})
	m = pump(m, m.startInit())

	m, cmd := typeQuestion(m, "hello")
	next, cmd := m.Update(cmd())
	m = next.(Model)
	next, _ = m.Update(cmd())
	m = next.(Model)
	require.True(t, m.busy)

	done := make(chan Model, 1)
	go func() {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		done <- next.(Model)
	}()
	select {
	case m = <-done:
	case <-time.After(time.Second):
		t.Fatal("Esc blocked the UI until the answer stopped")
	}
	assert.False(t, m.busy)
	assert.Equal(t, "Cancelled.", m.status)
}

func TestModel_EscBeforeStreamArrives(t *testing.T) {
	m, s := newModel(t, echoCompleter{})
	m = pump(m, m.startInit())

	m, askCmd := typeQuestion(m, "hello")
	require.NotNil(t, askCmd)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.True(t, m.cancelPending)

	// The stream shows up after the cancel and is aborted instead of read.
	next, cmd := m.Update(askCmd())
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.cancelPending)
	assert.Equal(t, "hello", m.entries[0].text)
	assert.Contains(t, m.entries[1].text, "(cancelled)")

	// Once the aborted answer has wound down the session accepts questions,
	// and nothing was committed.
	require.Eventually(t, func() bool {
		st, err := s.Ask(context.Background(), "again")
		if err != nil {
			return false
		}
		st.Cancel()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.History())
}
