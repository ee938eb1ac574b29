package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/verifier/pkg/verifier/engine"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/output"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

const (
	recentResults = 6
	recentLogs    = 3
)

// Runner is a started verification. *engine.Engine satisfies it.
type Runner interface {
	Events() <-chan engine.Event
	Done() <-chan engine.Completion
	Cancel()
}

// Options configures the run view.
type Options struct {
	// Title is shown in the header, typically the list path.
	Title string

	// Logs, when set, feeds the log panel.
	Logs <-chan logging.Entry
}

type (
	eventMsg        engine.Event
	eventsClosedMsg struct{}
	doneMsg         engine.Completion
	logMsg          logging.Entry
)

// Model is the Bubble Tea model for a verification run.
type Model struct {
	runner  Runner
	report  *output.Report
	options Options

	bar     progress.Model
	spinner spinner.Model

	current      string
	filePercent  int
	totalPercent int
	summary      types.Summary
	recent       []output.EntryResult
	logs         *logging.Buffer

	startTime  time.Time
	cancelling bool
	done       bool
	completion engine.Completion

	width  int
	height int
}

// NewModel creates a model that follows runner and records events into report.
func NewModel(runner Runner, report *output.Report, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		runner:    runner,
		report:    report,
		options:   opts,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		spinner:   s,
		summary:   types.Summary{Total: len(report.Entries)},
		logs:      logging.NewBuffer(recentLogs),
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init starts listening for engine events and log entries.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForEvent(m.runner.Events())}
	if m.options.Logs != nil {
		cmds = append(cmds, waitForLog(m.options.Logs))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForDone(ch <-chan engine.Completion) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(<-ch)
	}
}

func waitForLog(ch <-chan logging.Entry) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(e)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-12, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.runner.Cancel()
			}
		}
		return m, nil

	case eventMsg:
		m.apply(engine.Event(msg))
		return m, waitForEvent(m.runner.Events())

	case eventsClosedMsg:
		return m, waitForDone(m.runner.Done())

	case doneMsg:
		m.done = true
		m.completion = engine.Completion(msg)
		m.report.Complete(m.completion)
		return m, tea.Quit

	case logMsg:
		m.logs.Add(logging.Entry(msg))
		return m, waitForLog(m.options.Logs)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(ev engine.Event) {
	m.report.Apply(ev)
	m.totalPercent = ev.TotalPercent

	if ev.Status == types.InProgress {
		if ev.Entry != nil {
			m.current = ev.Entry.Name
		}
		m.filePercent = ev.FilePercent
		return
	}
	if !ev.Status.Terminal() {
		return
	}

	m.summary.Add(ev.Status)
	m.filePercent = 0
	if ev.Index >= 0 && ev.Index < len(m.report.Entries) {
		m.recent = append(m.recent, m.report.Entries[ev.Index])
		if len(m.recent) > recentResults {
			m.recent = m.recent[len(m.recent)-recentResults:]
		}
	}
}

// Completion returns the run's completion once the model has seen it.
func (m Model) Completion() (engine.Completion, bool) {
	return m.completion, m.done
}

// View renders the run.
func (m Model) View() string {
	width := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n\n")

	switch {
	case m.done && m.completion.Err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Stopped: %v", m.completion.Err)))
	case m.done:
		b.WriteString(successTextStyle.Render("  Verification complete"))
	case m.cancelling:
		b.WriteString(warningTextStyle.Render("  Cancelling..."))
	default:
		fmt.Fprintf(&b, "  %s %s %s", m.spinner.View(),
			truncate(m.current, width-16), mutedTextStyle.Render(fmt.Sprintf("%3d%%", m.filePercent)))
	}
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(float64(m.totalPercent) / 100))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats(width))
	b.WriteString("\n")

	for _, r := range m.recent {
		fmt.Fprintf(&b, "  %s %s\n",
			statusStyle(r.Status).Render(fmt.Sprintf("%-10s", r.Status)),
			truncate(r.Name, width-14))
	}

	if entries := m.logs.Entries(); len(entries) > 0 {
		b.WriteString("\n")
		for _, e := range entries {
			line := fmt.Sprintf("  %s %s: %s", e.Time.Format(time.TimeOnly), e.Component, e.Message)
			b.WriteString(logLevelStyle(e.Level).Render(truncate(line, width)))
			b.WriteString("\n")
		}
	}

	return outerBoxStyle.Width(max(m.width-2, 40)).Render(b.String())
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render("  verify ") + mutedTextStyle.Render(truncate(m.options.Title, width/2))
	hint := mutedTextStyle.Render("[q to cancel]")
	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

func (m Model) renderStats(width int) string {
	boxWidth := max((width-12)/5, 10)
	s := m.summary

	boxes := []string{
		m.renderStatBox("Files", fmt.Sprintf("%d/%d", s.Processed, s.Total), boxWidth),
		m.renderStatBox("Good", humanize.Comma(int64(s.Good)), boxWidth),
		m.renderStatBox("Bad", humanize.Comma(int64(s.Bad+s.Errors+s.WrongSize)), boxWidth),
		m.renderStatBox("Missing", humanize.Comma(int64(s.NotFound)), boxWidth),
		m.renderStatBox("Time", formatDuration(time.Since(m.startTime)), boxWidth),
	}
	parts := []string{"  "}
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		statsLabelStyle.Render(label),
		statsValueStyle.Render(value))
	return statsBoxStyle.Width(width).Align(lipgloss.Center).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// truncate shortens s to width runes, keeping the end, which for paths is
// the informative part.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}

// Run shows the run until it completes and returns its completion. The
// engine must already be started. If the terminal cannot be used the run is
// cancelled and its completion is still returned along with the error.
func Run(runner Runner, report *output.Report, opts Options) (engine.Completion, error) {
	p := tea.NewProgram(NewModel(runner, report, opts), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return drain(runner, report), fmt.Errorf("running TUI: %w", err)
	}
	if m, ok := final.(Model); ok {
		if c, done := m.Completion(); done {
			return c, nil
		}
	}
	return drain(runner, report), nil
}

// drain cancels the run and records whatever it still reports.
func drain(runner Runner, report *output.Report) engine.Completion {
	runner.Cancel()
	for ev := range runner.Events() {
		report.Apply(ev)
	}
	c := <-runner.Done()
	report.Complete(c)
	return c
}
