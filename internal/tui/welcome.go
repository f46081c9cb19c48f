package tui

import (
	"context"
	"fmt"
	"strings"

	"bigrag/internal/index"
	"bigrag/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type welcomeModel struct {
	ready  bool // true once the check has completed
	root   string
	model  string
	files  int
	chunks int
	err    error
}

// checkIndexMsg is sent after reading the index counters.
type checkIndexMsg struct {
	root   string
	model  string
	files  int
	chunks int
	err    error
}

func checkIndex(ctx context.Context, idx *index.Indexer) tea.Cmd {
	return func() tea.Msg {
		msg := checkIndexMsg{root: idx.Root}
		msg.files, msg.err = idx.Fingerprints.Count()
		if msg.err != nil {
			return msg
		}
		msg.chunks, msg.err = idx.Vectors.Count(ctx)
		if msg.err != nil {
			return msg
		}
		msg.model, msg.err = idx.Vectors.GetMeta(ctx, store.MetaEmbeddingModel)
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkIndexMsg:
		m.root = msg.root
		m.model = msg.model
		m.files = msg.files
		m.chunks = msg.chunks
		m.err = msg.err
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(appName string, width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ "+appName) + "\n"
	s += subtitleStyle.Render("  Delta indexing and retrieval over run artifacts") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	}

	lines := []string{dimStyle.Render("Root: " + m.root)}
	switch {
	case m.err != nil:
		lines = append(lines, errorStyle.Render("✗ "+m.err.Error()))
	case m.files == 0:
		lines = append(lines, warnStyle.Render("✗ Index is empty"))
	default:
		lines = append(lines, successStyle.Render(fmt.Sprintf("✓ %d files, %d chunks", m.files, m.chunks)))
		if m.model != "" {
			lines = append(lines, dimStyle.Render("  embedded with "+m.model))
		}
	}
	s += panelStyle.Render(strings.Join(lines, "\n")) + "\n"

	s += "\n"
	s += dimStyle.Render("  Enter: run a delta index pass") + "\n"
	if m.files > 0 {
		s += dimStyle.Render("  a: ask questions now") + "\n"
	}
	s += dimStyle.Render("  q: quit") + "\n"
	return s
}
