// Package app renders a terminal monitor for a running cohort assembly.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	progressBarStyle = lipgloss.NewStyle().Padding(0, 1)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	statusStyle      = map[string]lipgloss.Style{
		"ok":     lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		"fetch":  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"frame":  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"schema": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"parse":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// sampleRow is one finished sample shown in the activity table.
type sampleRow struct {
	SampleID string
	Group    string
	Status   string
	Elapsed  time.Duration
	ErrMsg   string
}

// Model is the bubbletea model for the run monitor.
type Model struct {
	State           AppState
	spinner         spinner.Model
	overallProgress progress.Model

	mu          sync.RWMutex
	currentSite string
	totalKnown  int
	done        int
	succeeded   int
	failed      int
	rows        []sampleRow

	lastError error
	runStart  time.Time

	termWidth  int
	termHeight int

	uiMsgChan chan tea.Msg
	cancelRun context.CancelFunc
}

// NewModel creates the monitor. Messages arrive on uiMsgChan from the
// running workflow; cancelRun is invoked when the user quits mid-run.
func NewModel(uiMsgChan chan tea.Msg, cancelRun context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		State:           Running,
		spinner:         s,
		overallProgress: progress.New(progress.WithDefaultGradient()),
		runStart:        time.Now(),
		uiMsgChan:       uiMsgChan,
		cancelRun:       cancelRun,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivityCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.State {
		case Finished, ShowError:
			if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.String() == "q" || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		default:
			if msg.String() == "ctrl+c" || msg.String() == "q" {
				m.State = Exiting
				if m.cancelRun != nil {
					m.cancelRun()
				}
			}
		}
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.overallProgress.Width = maxInt(0, m.termWidth-20)
	case GroupStartMsg:
		m.mu.Lock()
		m.currentSite = msg.Site
		m.totalKnown += msg.Total
		m.mu.Unlock()
	case SampleMsg:
		m.mu.Lock()
		m.done++
		status := "ok"
		if msg.OK {
			m.succeeded++
		} else {
			m.failed++
			status = msg.Kind
		}
		m.rows = append(m.rows, sampleRow{
			SampleID: msg.SampleID,
			Group:    msg.Group,
			Status:   status,
			Elapsed:  msg.Elapsed,
			ErrMsg:   msg.ErrMsg,
		})
		var percent float64
		if m.totalKnown > 0 {
			percent = float64(m.done) / float64(m.totalKnown)
		}
		m.mu.Unlock()
		cmd = m.overallProgress.SetPercent(percent)
		cmds = append(cmds, cmd)
	case RunFinishedMsg:
		m.uiMsgChan = nil
		if msg.Err != nil {
			m.lastError = msg.Err
			m.State = ShowError
		} else if m.State != Exiting {
			m.State = Finished
		}
		if m.State == Exiting {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if m.State == Running || m.State == Exiting {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		progModel, frameCmd := m.overallProgress.Update(msg)
		if newModel, ok := progModel.(progress.Model); ok {
			m.overallProgress = newModel
			cmds = append(cmds, frameCmd)
		}
	}

	if m.uiMsgChan != nil {
		cmds = append(cmds, m.waitForActivityCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("--- GDC Expression Matrix Builder ---"))
	b.WriteString("\n\n")

	switch m.State {
	case Running, Exiting:
		b.WriteString(m.viewProgress())
	case Finished:
		b.WriteString(m.viewProgress())
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Run complete in %s.", time.Since(m.runStart).Round(time.Second))))
	case ShowError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n\n")
	switch m.State {
	case Running:
		b.WriteString(infoStyle.Render("Run in progress... 'q' or Ctrl+C to cancel."))
	case Exiting:
		b.WriteString(infoStyle.Render("Cancelling, waiting for in-flight samples..."))
	default:
		b.WriteString(infoStyle.Render("Press Enter or 'q' to exit."))
	}
	return b.String()
}

func (m *Model) viewProgress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder

	if m.State == Running || m.State == Exiting {
		b.WriteString(fmt.Sprintf("%s Site: %s\n", m.spinner.View(), m.currentSite))
	}
	b.WriteString(progressBarStyle.Render(m.overallProgress.View()))
	b.WriteString(fmt.Sprintf(" (%d/%d, %d ok, %d failed)\n\n", m.done, m.totalKnown, m.succeeded, m.failed))

	maxLines := m.termHeight - 10
	if maxLines < 1 {
		maxLines = 1
	}
	startIdx := 0
	if len(m.rows) > maxLines {
		startIdx = len(m.rows) - maxLines
	}

	if len(m.rows) > 0 {
		b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-28s | %-8s | %-8s | %s", "Sample", "Group", "Status", "Elapsed")))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", maxInt(1, m.termWidth)))
		b.WriteString("\n")
		for i := startIdx; i < len(m.rows); i++ {
			row := m.rows[i]
			style, ok := statusStyle[row.Status]
			if !ok {
				style = infoStyle
			}
			sampleID := row.SampleID
			if len(sampleID) > 28 {
				sampleID = sampleID[:25] + "..."
			}
			line := fmt.Sprintf("%-28s | %-8s | %-8s | %s",
				sampleID, row.Group, style.Render(row.Status), row.Elapsed.Round(time.Millisecond))
			b.WriteString(line)
			if row.Status != "ok" && row.ErrMsg != "" && m.termWidth > 12 {
				errMsg := "  -> " + row.ErrMsg
				if len(errMsg) >= m.termWidth {
					errMsg = errMsg[:m.termWidth-1]
				}
				b.WriteString("\n")
				b.WriteString(errorStyle.Render(errMsg))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) viewError() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("The run finished with errors:"))
	b.WriteString("\n\n")
	if m.lastError != nil {
		b.WriteString(wrapText(m.lastError.Error(), maxInt(10, m.termWidth-4)))
	} else {
		b.WriteString("Unknown error.")
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) waitForActivityCmd() tea.Cmd {
	ch := m.uiMsgChan
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}
	var result strings.Builder
	var currentLine strings.Builder
	for _, word := range strings.Fields(text) {
		if currentLine.Len() > 0 && currentLine.Len()+len(word)+1 > maxWidth {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	result.WriteString(currentLine.String())
	return result.String()
}
