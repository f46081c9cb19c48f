package tui

import (
	"context"
	"fmt"
	"strings"

	"bigrag/internal/llm"
	"bigrag/internal/rag"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type askState int

const (
	askIdle askState = iota
	askSearching
	askGenerating
)

// maxHistory caps the conversation replayed to the model (10 turns).
const maxHistory = 20

type askModel struct {
	ctx         context.Context
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []askMessage
	history     []llm.Message
	pipeline    *rag.Pipeline
	userID      string
	state       askState
	k           int
	width       int
	height      int
	initialized bool
}

type askMessage struct {
	role    string
	content string
}

// retrievedMsg is sent when the retrieve stage completes.
type retrievedMsg struct {
	state *rag.State
	err   error
}

// answerMsg is sent when the generate stage completes.
type answerMsg struct {
	answer string
	err    error
}

func newAskModel(ctx context.Context, p *rag.Pipeline, userID string, k int) askModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about the indexed runs..."
	ti.CharLimit = rag.MaxQueryLength
	ti.Focus()

	return askModel{
		ctx:      ctx,
		spinner:  sp,
		input:    ti,
		pipeline: p,
		userID:   userID,
		k:        k,
		state:    askIdle,
	}
}

func (m *askModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + borders/gaps (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Ask a question about the indexed documents.\n\nCommands: /help, /clear, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func retrieve(ctx context.Context, p *rag.Pipeline, s *rag.State) tea.Cmd {
	return func() tea.Msg {
		if err := p.Run(ctx, s, p.Retrieve); err != nil {
			return retrievedMsg{err: fmt.Errorf("retrieval error: %w", err)}
		}
		return retrievedMsg{state: s}
	}
}

func generate(ctx context.Context, p *rag.Pipeline, s *rag.State) tea.Cmd {
	return func() tea.Msg {
		if err := p.Run(ctx, s, p.Generate); err != nil {
			return answerMsg{err: err}
		}
		return answerMsg{answer: s.Answer}
	}
}

func (m askModel) Update(msg tea.Msg) (askModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case retrievedMsg:
		if msg.err != nil {
			m.state = askIdle
			m.messages = append(m.messages, askMessage{role: "error", content: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		m.state = askGenerating
		if len(msg.state.Results) > 0 {
			m.messages = append(m.messages, askMessage{role: "sources", content: formatSources(msg.state)})
		}
		m.refresh()
		return m, generate(m.ctx, m.pipeline, msg.state)

	case answerMsg:
		m.state = askIdle
		if msg.err != nil {
			m.messages = append(m.messages, askMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, askMessage{role: "assistant", content: msg.answer})
			m.history = append(m.history, llm.Message{Role: "assistant", Content: msg.answer})
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.state != askIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.state != askIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	if m.state == askIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update viewport (scrolling).
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m askModel) submit() (askModel, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	m.input.Reset()

	switch raw {
	case "/exit", "/quit":
		return m, tea.Quit
	case "/clear":
		m.messages = nil
		m.history = nil
		m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
		return m, nil
	case "/help":
		helpText := "Commands:\n  /clear  - clear conversation history\n  /exit   - quit\n  /help   - show this help"
		m.messages = append(m.messages, askMessage{role: "system", content: helpText})
		m.refresh()
		return m, nil
	}

	question, err := rag.ValidateQuery(raw)
	if err != nil {
		m.messages = append(m.messages, askMessage{role: "error", content: err.Error()})
		m.refresh()
		return m, nil
	}

	s := &rag.State{
		Question: question,
		UserID:   m.userID,
		K:        m.k,
		History:  append([]llm.Message(nil), m.history...),
	}
	m.messages = append(m.messages, askMessage{role: "user", content: question})
	m.history = append(m.history, llm.Message{Role: "user", Content: question})
	m.state = askSearching
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, retrieve(m.ctx, m.pipeline, s))
}

func (m *askModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func formatSources(s *rag.State) string {
	var sb strings.Builder
	sb.WriteString("Sources:")
	for _, h := range rag.ToHits(s.Results) {
		fmt.Fprintf(&sb, "\n  %s #%d (%.3f)", h.FilePath, h.ChunkIndex, h.Score)
	}
	return sb.String()
}

func (m askModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m askModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "sources":
			sb.WriteString(sourceStyle.Render(msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.state != askIdle {
		label := "Searching..."
		if m.state == askGenerating {
			label = "Generating..."
		}
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(label) + "\n")
	}

	return sb.String()
}

func (m askModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	switch m.state {
	case askSearching:
		statusText = "searching..."
	case askGenerating:
		statusText = "generating..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" bigrag ask • %s", statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
