package tui

import (
	"context"
	"fmt"

	"bigrag/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner spinner.Model
	phase   string
	done    int
	total   int
	// finished is set once the run returns.
	finished bool
	result   *index.Result
	err      error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		phase:   index.PhaseScan,
	}
}

// indexDoneMsg is sent when the run completes.
type indexDoneMsg struct {
	result *index.Result
	err    error
}

// indexProgressMsg is sent by the engine's progress callback.
type indexProgressMsg struct {
	phase string
	done  int
	total int
}

func runIndex(ctx context.Context, cfg Config) tea.Cmd {
	return func() tea.Msg {
		res, err := cfg.Indexer.Index(ctx, index.RunOptions{
			UserID: cfg.UserID,
			Progress: func(phase string, done, total int) {
				cfg.program.send(indexProgressMsg{phase: phase, done: done, total: total})
			},
		})
		return indexDoneMsg{result: res, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.done = msg.done
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Indexing") + "\n\n"

	if m.finished {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		} else {
			s += successStyle.Render("  ✓ Delta run complete") + "\n\n"
		}
		if r := m.result; r != nil {
			s += fmt.Sprintf("  Files:  %d new, %d updated, %d deleted, %d unchanged\n",
				r.NewFiles, r.UpdatedFiles, r.DeletedFiles, r.UnchangedFiles)
			if r.FailedFiles > 0 {
				s += warnStyle.Render(fmt.Sprintf("  %d files failed and will be retried next run", r.FailedFiles)) + "\n"
			}
			s += fmt.Sprintf("  Chunks: %d indexed\n", r.IndexedDocuments)
			if r.OrphansPurged > 0 {
				s += fmt.Sprintf("  Orphans purged: %d\n", r.OrphansPurged)
			}
			s += dimStyle.Render(fmt.Sprintf("  run %s, %dms", r.RunID, r.DurationMS)) + "\n"
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to ask questions, or q to quit.") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), phaseStyle.Render(m.phase))
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d\n", m.done, m.total)
	}
	s += "\n"
	s += dimStyle.Render("  Only new and changed files are embedded.") + "\n"
	return s
}
