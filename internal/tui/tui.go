package tui

import (
	"context"

	"bigrag/internal/index"
	"bigrag/internal/rag"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewIndexing
	ViewAsk
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds what the CLI layer has already opened.
type Config struct {
	AppName  string
	Indexer  *index.Indexer
	Pipeline *rag.Pipeline
	UserID   string

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	ctx    context.Context
	state  ViewState
	config Config
	width  int
	height int

	welcome  welcomeModel
	indexing indexingModel
	ask      askModel
}

// New creates a new TUI model with the given config.
func New(ctx context.Context, cfg Config) Model {
	return Model{
		ctx:    ctx,
		state:  ViewWelcome,
		config: cfg,
	}
}

func (m Model) Init() tea.Cmd {
	return checkIndex(m.ctx, m.config.Indexer)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewAsk {
			var c tea.Cmd
			m.ask, c = m.ask.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewAsk {
				return m, tea.Quit
			}
		}
	}

	switch m.state {
	case ViewWelcome:
		return m.updateWelcome(msg)
	case ViewIndexing:
		return m.updateIndexing(msg)
	case ViewAsk:
		var cmd tea.Cmd
		m.ask, cmd = m.ask.Update(msg)
		return m, cmd
	}
	return m, nil
}

// updateWelcome starts a delta run on Enter, or skips to the ask view on "a"
// when something is already indexed.
func (m Model) updateWelcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.welcome, cmd = m.welcome.Update(msg)
	if cmd != nil {
		return m, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.welcome.ready {
		return m, nil
	}
	switch {
	case key.Type == tea.KeyEnter:
		m.state = ViewIndexing
		m.indexing = newIndexingModel()
		return m, tea.Batch(m.indexing.spinner.Tick, runIndex(m.ctx, m.config))
	case key.String() == "a" && m.welcome.files > 0:
		return m, m.transitionToAsk()
	}
	return m, nil
}

func (m Model) updateIndexing(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.indexing, cmd = m.indexing.Update(msg)
	if cmd != nil {
		return m, cmd
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter && m.indexing.finished {
		return m, m.transitionToAsk()
	}
	return m, nil
}

func (m *Model) transitionToAsk() tea.Cmd {
	m.ask = newAskModel(m.ctx, m.config.Pipeline, m.config.UserID, rag.DefaultK)
	m.ask.initViewport(m.width, m.height)
	m.state = ViewAsk
	return nil
}

func (m Model) View() string {
	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.config.AppName, m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewAsk:
		return m.ask.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(ctx context.Context, cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(ctx, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	ref.p = p
	_, err := p.Run()
	return err
}
