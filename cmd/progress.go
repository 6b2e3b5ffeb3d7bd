package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

const maxRecentResults = 5

type progressModel struct {
	suiteName string
	total     int
	finished  int
	passed    int
	failed    int
	errors    int
	overall   progress.Model
	spinner   spinner.Model
	recent    []string
	done      bool
	width     int
	startTime time.Time
	cancel    context.CancelFunc
}

type checkFinishedMsg struct {
	scenario string
	result   suite.CheckResult
}

type scenarioFinishedMsg struct {
	result suite.ScenarioResult
}

type runFinishedMsg struct{}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	progressInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Margin(0, 2)
)

func newProgressModel(s *suite.Suite, cancel context.CancelFunc) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		suiteName: s.Name,
		total:     len(s.Scenarios),
		overall: progress.New(
			progress.WithScaledGradient("#FF7CCB", "#FDFF8C"),
			progress.WithWidth(60),
		),
		spinner:   sp,
		startTime: time.Now(),
		cancel:    cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.overall.Width = msg.Width - 10
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.overall.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.overall = p
		}
		return m, cmd
	case checkFinishedMsg:
		return m.handleCheckFinished(msg)
	case scenarioFinishedMsg:
		m.finished++
		return m, nil
	case runFinishedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "q" {
		if m.cancel != nil {
			m.cancel()
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handleCheckFinished(msg checkFinishedMsg) (tea.Model, tea.Cmd) {
	var icon string
	switch msg.result.Status {
	case suite.StatusPassed:
		m.passed++
		icon = "✅"
	case suite.StatusFailed:
		m.failed++
		icon = "❌"
	default:
		m.errors++
		icon = "⚠️ "
	}
	line := fmt.Sprintf("%s %s / %s", icon, msg.scenario, msg.result.Name)
	if msg.result.Condition != "" {
		line += " - " + string(msg.result.Condition)
	}
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecentResults {
		m.recent = m.recent[len(m.recent)-maxRecentResults:]
	}
	return m, nil
}

func (m progressModel) fraction() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.finished) / float64(m.total)
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	var sections []string
	sections = append(sections, "", titleStyle.Render("   "+m.suiteName), "")
	sections = append(sections, progressInfoStyle.Render(fmt.Sprintf("   Scenarios: %d/%d", m.finished, m.total)))
	sections = append(sections, "   "+m.overall.ViewAs(m.fraction()))
	sections = append(sections, "")
	sections = append(sections, stageStyle.Render(fmt.Sprintf("   %s %d passed, %d failed, %d errors (%s)",
		m.spinner.View(), m.passed, m.failed, m.errors, time.Since(m.startTime).Round(time.Second))))

	if len(m.recent) > 0 {
		sections = append(sections, "")
		for _, line := range m.recent {
			sections = append(sections, "     "+line)
		}
	}

	sections = append(sections, "", helpStyle.Render("   Press Ctrl+C or 'q' to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// progressObserver forwards runner events to the TUI.
type progressObserver struct {
	program *tea.Program
}

func (o *progressObserver) CheckFinished(scenario string, r suite.CheckResult) {
	o.program.Send(checkFinishedMsg{scenario: scenario, result: r})
}

func (o *progressObserver) ScenarioFinished(r suite.ScenarioResult) {
	o.program.Send(scenarioFinishedMsg{result: r})
}

// runWithProgress runs the suite behind a progress display on stderr.
func runWithProgress(ctx context.Context, s *suite.Suite, build func(suite.Observer) *suite.Runner) (*suite.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newProgressModel(s, cancel), tea.WithOutput(os.Stderr))
	runner := build(&progressObserver{program: program})

	type outcome struct {
		report *suite.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := runner.Run(ctx, s)
		done <- outcome{report: report, err: err}
		program.Send(runFinishedMsg{})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress display failed: %w", err)
	}
	res := <-done
	return res.report, res.err
}

// summaryLine is the one-line result shown after the TUI exits.
func summaryLine(r *suite.Report) string {
	s := r.Summary()
	parts := []string{fmt.Sprintf("%d passed", s.Passed)}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", s.Errors))
	}
	return strings.Join(parts, ", ")
}
