package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unblockhq/unblock/models"
)

// BoardSnapshot is one refresh of marketplace state for the live board.
type BoardSnapshot struct {
	Tasks []models.Task
	Trust []models.TrustRecord
}

// SnapshotFunc fetches current marketplace state. The board polls it on
// an interval so it works against both an in-process engine and the
// HTTP API.
type SnapshotFunc func() (BoardSnapshot, error)

type snapshotMsg BoardSnapshot

type snapshotErrMsg struct{ err error }

type pollTickMsg time.Time

// BoardModel is the bubbletea model behind the live task board.
type BoardModel struct {
	fetch    SnapshotFunc
	interval time.Duration
	tasks    table.Model
	spin     spinner.Model
	trust    []models.TrustRecord
	err      error
	synced   time.Time
	loaded   bool
}

// NewBoard creates the live board model. interval controls the poll rate.
func NewBoard(fetch SnapshotFunc, interval time.Duration) BoardModel {
	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Status", Width: 18},
		{Title: "Question", Width: 42},
		{Title: "Bounty", Width: 8},
		{Title: "Attempt", Width: 7},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(ColorPrimary)
	styles.Selected = styles.Selected.Foreground(ColorText).Background(ColorSecondary)
	t.SetStyles(styles)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StylePrimary

	return BoardModel{fetch: fetch, interval: interval, tasks: t, spin: sp}
}

func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchCmd())
}

func (m BoardModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		snap, err := fetch()
		if err != nil {
			return snapshotErrMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

func (m BoardModel) pollCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		}
	case snapshotMsg:
		m.loaded = true
		m.err = nil
		m.synced = time.Now()
		m.trust = msg.Trust
		m.tasks.SetRows(taskRows(msg.Tasks))
		return m, m.pollCmd()
	case snapshotErrMsg:
		m.err = msg.err
		return m, m.pollCmd()
	case pollTickMsg:
		return m, m.fetchCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.tasks, cmd = m.tasks.Update(msg)
	return m, cmd
}

func (m BoardModel) View() string {
	header := StyleHeader.Render("unblock task board")
	if !m.loaded {
		return fmt.Sprintf("%s\n\n %s loading...\n", header, m.spin.View())
	}

	body := StyleBoardFrame.Render(m.tasks.View())
	footer := StyleSubtle.Render(fmt.Sprintf(
		" %d supervisors tracked · synced %s · q quit, r refresh",
		len(m.trust), m.synced.Format("15:04:05")))
	if m.err != nil {
		footer = StyleError.Render(" refresh failed: "+m.err.Error()) + "\n" + footer
	}
	return fmt.Sprintf("%s\n%s\n%s\n", header, body, footer)
}

func taskRows(tasks []models.Task) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		attempt := ""
		if t.AttemptNumber > 1 {
			attempt = fmt.Sprintf("#%d", t.AttemptNumber)
		}
		rows = append(rows, table.Row{
			shortID(t.ID),
			string(t.Status),
			t.Question,
			fmt.Sprintf("%d", t.BountyAmount),
			attempt,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
